package vm

import (
	"log/slog"
	"time"
)

// Clock abstracts wall-clock measurement so the adaptive yield budget
// is testable without real sleeps. defaultClock backs it with
// time.Now in production.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type defaultClock struct{}

func (defaultClock) Now() time.Time                  { return time.Now() }
func (defaultClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Pool is the thread pool / scheduler: it owns every thread, picks the
// next runnable thread via round-robin, tracks park counts, and
// triggers JVM shutdown accounting. Grounded on the
// teacher's VM struct (vm/vm.go) as the "one struct owns all the
// runtime's moving parts" central registry, generalized from a
// class/object registry to a thread registry, plus the teacher's
// server/vm_worker.go single-goroutine dispatch loop for the
// host-tick-deferral requirement (carried here via Dispatcher).
type Pool struct {
	threads      []*Thread
	runningIndex int
	running      *Thread

	parkCounts *parkRegistry
	dispatcher *Dispatcher

	// maxMethodResumes and nSamples are the adaptive scheduler control
	// variables: pool-scoped, not process-global, so separate pools
	// (e.g. in tests) never cross-pollute each other's yield budget.
	maxMethodResumes int
	nSamples         int
	responsivenessMs int64

	inShutdown    bool
	emptyCalled   bool
	emptyCallback func()

	// SystemExitHook, if set, is invoked in place of the default
	// immediate-empty-callback behavior when the last schedulable
	// non-daemon thread terminates. A host with a real
	// java/lang/System.exit(0) implementation sets this to run
	// shutdown hooks and eventually call back into the pool once
	// those hooks' threads also terminate.
	SystemExitHook func(t *Thread)

	clock Clock
	Debug bool
	Log   *slog.Logger

	opcodes OpcodeTable
}

// NewPool creates an empty pool configured by cfg (see config.go).
// opcodes is the external opcode dispatch table; it may be swapped per
// pool, since bytecode semantics are entirely external to this core.
func NewPool(cfg SchedulerConfig, opcodes OpcodeTable) *Pool {
	p := &Pool{
		parkCounts:       newParkRegistry(),
		dispatcher:       NewDispatcher(64),
		maxMethodResumes: cfg.MaxMethodResumes,
		responsivenessMs: cfg.ResponsivenessMs,
		clock:            defaultClock{},
		Debug:            cfg.Debug,
		Log:              slog.Default(),
		opcodes:          opcodes,
		runningIndex:     -1,
	}
	return p
}

func (p *Pool) logger() *slog.Logger {
	if p.Log == nil {
		return slog.Default()
	}
	return p.Log
}

// SetEmptyCallback registers the callback invoked once the pool has no
// schedulable non-daemon thread left and the JVM has already begun
// shutdown.
func (p *Pool) SetEmptyCallback(fn func()) { p.emptyCallback = fn }

// AddThread registers a NEW thread with the pool.
func (p *Pool) AddThread(t *Thread) {
	t.pool = p
	p.threads = append(p.threads, t)
}

func (p *Pool) adaptMaxMethodResumes(dur time.Duration) {
	if dur <= 0 {
		return
	}
	durMs := float64(dur) / float64(time.Millisecond)
	estimate := int64(float64(p.maxMethodResumes) / durMs * float64(p.responsivenessMs))
	if estimate < 1 {
		estimate = 1
	}
	p.maxMethodResumes = int((estimate + int64(p.nSamples)*int64(p.maxMethodResumes)) / int64(p.nSamples+1))
	if p.maxMethodResumes < 1 {
		p.maxMethodResumes = 1
	}
	p.nSamples++
}

// onStatusChanged lets the pool react to every thread transition,
// driving the scheduler's thread-runnable / thread-suspended /
// thread-terminated bookkeeping.
func (p *Pool) onStatusChanged(t *Thread, from, to ThreadStatus) {
	switch to {
	case Runnable:
		p.threadRunnable(t)
	case Terminated:
		p.threadTerminated(t)
	case Blocked, UninterruptablyBlocked, Waiting, TimedWaiting, Parked, AsyncWaiting:
		if p.running == t {
			p.threadSuspended(t)
		}
	}
}

// threadRunnable schedules the next thread if none is currently
// RUNNING.
func (p *Pool) threadRunnable(t *Thread) {
	if p.running == nil {
		p.scheduleNextThread()
	}
}

// threadUnblocked is called by a Monitor's onAcquire callback once a
// previously BLOCKED thread has confirmed entry; it flips the thread
// to RUNNABLE and lets the scheduler pick it up.
func (p *Pool) threadUnblocked(t *Thread) {
	t.SetStatus(Runnable)
}

// scheduleNextThread defers to the next host event-loop tick, then
// scans starting one past runningIndex, modulo length, picking the
// first RUNNABLE thread. It is legal to find none — the pool then sits
// idle until an external event produces a RUNNABLE thread.
func (p *Pool) scheduleNextThread() {
	p.dispatcher.Defer(func() {
		if p.running != nil || len(p.threads) == 0 {
			return
		}
		n := len(p.threads)
		for i := 1; i <= n; i++ {
			idx := (p.runningIndex + i) % n
			cand := p.threads[idx]
			if cand.Status() == Runnable {
				p.runningIndex = idx
				p.running = cand
				p.logger().Debug("scheduling thread", "index", idx)
				cand.setStatusLocked(Running)
				cand.Run()
				if p.running == cand {
					p.threadSuspended(cand)
				}
				return
			}
		}
		// No candidate found: the pool goes idle until an external
		// async event produces a RUNNABLE thread.
	})
}

// threadSuspended clears running and schedules again, if t was the
// running thread.
func (p *Pool) threadSuspended(t *Thread) {
	if p.running != t {
		return
	}
	p.running = nil
	p.scheduleNextThread()
}

// threadTerminated removes t and runs the shutdown accounting: if any
// other non-daemon thread can still run, schedule it; otherwise start
// (or continue) JVM shutdown.
func (p *Pool) threadTerminated(t *Thread) {
	p.removeThread(t)
	p.parkCounts.forget(t)
	if p.running == t {
		p.running = nil
	}

	if p.hasSchedulableNonDaemon() {
		p.scheduleNextThread()
		return
	}
	if !p.inShutdown {
		p.inShutdown = true
		p.invokeSystemExit(t)
		return
	}
	p.fireEmptyCallback()
}

func (p *Pool) hasSchedulableNonDaemon() bool {
	for _, th := range p.threads {
		if th.Daemon() {
			continue
		}
		if th.Status() == New || th.Status() == Terminated {
			continue
		}
		return true
	}
	return false
}

// invokeSystemExit co-opts the exiting thread's identity to run
// java/lang/System.exit(0) for shutdown hooks. The object model's
// System class, and any real shutdown-hook machinery, are out of
// scope — this core only guarantees the call happens exactly once. A
// host can observe it via SystemExitHook; left unset, there is nothing
// left for "the JVM shutting down" to mean, so the pool proceeds
// straight to the empty callback, which is still only ever invoked
// once.
func (p *Pool) invokeSystemExit(t *Thread) {
	if p.Log != nil {
		p.Log.Info("last non-daemon thread terminated, invoking System.exit(0)")
	}
	if p.SystemExitHook != nil {
		p.SystemExitHook(t)
		return
	}
	p.fireEmptyCallback()
}

func (p *Pool) fireEmptyCallback() {
	if p.emptyCalled {
		return
	}
	p.emptyCalled = true
	if p.emptyCallback != nil {
		p.emptyCallback()
	}
}

func (p *Pool) removeThread(t *Thread) {
	for i, th := range p.threads {
		if th == t {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			if p.runningIndex > i {
				p.runningIndex--
			} else if p.runningIndex >= len(p.threads) {
				p.runningIndex = len(p.threads) - 1
			}
			return
		}
	}
}

// Park is the signed park/unpark counting semaphore: park increments
// the thread's balance and only blocks it when the resulting balance
// is positive, so an unpark that arrived earlier banks a permit
// instead.
func (p *Pool) Park(t *Thread) {
	count := p.parkCounts.park(t)
	if count > 0 {
		t.SetStatus(Parked)
	}
}

// Unpark decrements t's balance. It only wakes the thread when t is
// actually PARKED — an unpark against an idle thread just banks the
// permit for its next park, it is not itself a state transition, and
// RUNNABLE -> RUNNABLE is not a legal transition to request.
func (p *Pool) Unpark(t *Thread) {
	count := p.parkCounts.unpark(t)
	if count <= 0 && t.Status() == Parked {
		t.SetStatus(Runnable)
	}
}

// CompletelyUnpark forces the balance to zero and wakes the thread if
// it was PARKED.
func (p *Pool) CompletelyUnpark(t *Thread) {
	p.parkCounts.completelyUnpark(t)
	if t.Status() == Parked {
		t.SetStatus(Runnable)
	}
}

// ParkBalance exposes the current signed count for tests: the park
// balance is order-independent, so interleaving park/unpark calls in
// any order leaves the same count.
func (p *Pool) ParkBalance(t *Thread) int {
	return p.parkCounts.balance(t)
}

// Shutdown stops the pool's dispatcher goroutine.
func (p *Pool) Shutdown() {
	p.dispatcher.Close()
}
