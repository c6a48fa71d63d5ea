package vm

import "log/slog"

// Thread is a single logical Java thread multiplexed over the pool's
// one physical goroutine. Its frame stack, status field, and
// execution loop are the direct analogue of the teacher's Interpreter
// (vm/interpreter.go) generalized from a fixed Smalltalk call stack to
// the heterogeneous Bytecode/Native/Internal frame stack this core
// needs.
type Thread struct {
	status      ThreadStatus
	stack       []Frame
	interrupted bool
	immortal    bool
	daemon      bool

	monitorBlock Monitor
	bridge       JavaThreadBridge
	classLoader  ClassLoader

	pool *Pool
	log  *slog.Logger

	// The adaptive yield budget's control variables
	// (max_method_resumes, n_samples) live on Pool, scoped to a pool
	// instance rather than process-global; Thread keeps none of them.
}

// NewThread creates a NEW thread owned by pool. classLoader and bridge
// may be overridden per-thread (e.g. a bootstrap class loader differs
// from an application thread's) rather than shared off the pool.
func NewThread(pool *Pool, bridge JavaThreadBridge, classLoader ClassLoader, daemon bool) *Thread {
	return &Thread{
		status:      New,
		pool:        pool,
		bridge:      bridge,
		classLoader: classLoader,
		daemon:      daemon,
		log:         pool.logger(),
	}
}

func (t *Thread) Status() ThreadStatus { return t.status }
func (t *Thread) Daemon() bool         { return t.daemon }
func (t *Thread) Immortal() bool       { return t.immortal }

// SetImmortal marks the thread as never observing TERMINATED; used
// for runtime bootstrap threads.
func (t *Thread) SetImmortal(v bool) { t.immortal = v }

func (t *Thread) SetInterrupted(v bool) { t.interrupted = v }
func (t *Thread) Interrupted() bool     { return t.interrupted }

func (t *Thread) topFrame() Frame {
	if len(t.stack) == 0 {
		return nil
	}
	return t.stack[len(t.stack)-1]
}

// PushFrame pushes a new top frame (called by native methods and
// opcodes to invoke another method).
func (t *Thread) PushFrame(f Frame) {
	t.stack = append(t.stack, f)
}

func (t *Thread) popFrame() Frame {
	n := len(t.stack)
	if n == 0 {
		return nil
	}
	f := t.stack[n-1]
	t.stack = t.stack[:n-1]
	return f
}

// StackTrace projects the Java-visible call stack, skipping internal
// frames (their StackTraceFrame returns nil to hide them).
func (t *Thread) StackTrace() []STFrame {
	trace := make([]STFrame, 0, len(t.stack))
	for i := len(t.stack) - 1; i >= 0; i-- {
		if st := t.stack[i].StackTraceFrame(); st != nil {
			trace = append(trace, *st)
		}
	}
	return trace
}

// SetStatus performs a validated state transition, updating the
// Java-visible threadStatus bridge field to match the JVMTI
// projection. RUNNING -> RUNNABLE requests are silently ignored — the
// thread just stays RUNNING — and any TERMINATED request against an
// immortal thread is dropped.
func (t *Thread) SetStatus(to ThreadStatus) {
	if t.status == Running && to == Runnable {
		return
	}
	if to == Terminated && t.immortal {
		return
	}
	if !validateTransition(t.status, to) {
		assertViolation(t.pool.Debug, "illegal thread status transition %s -> %s", t.status, to)
		return
	}
	t.setStatusLocked(to)
}

// setStatusLocked applies the transition without re-validating —
// used by callers (like a just-confirmed monitor entry) that have
// already established the transition is legal by construction.
func (t *Thread) setStatusLocked(to ThreadStatus) {
	from := t.status
	t.status = to
	if t.bridge != nil {
		t.bridge.SetThreadStatus(int(jvmtiProjection(to)))
	}
	if t.log != nil {
		t.log.Debug("thread status transition", "from", from.String(), "to", to.String())
	}
	t.pool.onStatusChanged(t, from, to)
}

// Run drives this thread's execution loop, adapting the pool's shared
// max_method_resumes budget toward its responsiveness target via a
// cumulative moving average.
func (t *Thread) Run() {
	pool := t.pool
	resumesLeft := pool.maxMethodResumes
	start := pool.clock.Now()

	for t.status == Running && len(t.stack) > 0 {
		t.topFrame().Run(t)
		resumesLeft--
		if resumesLeft == 0 {
			dur := pool.clock.Since(start)
			pool.adaptMaxMethodResumes(dur)
			if t.status == Running {
				t.setStatusLocked(AsyncWaiting)
				pool.dispatcher.Defer(func() {
					t.SetStatus(Runnable)
					pool.threadRunnable(t)
				})
			}
			return
		}
	}
	if len(t.stack) == 0 && !t.immortal {
		t.setStatusLocked(Terminated)
	}
}

// AsyncReturn pops the top frame and resumes the caller with (rv,
// rv2). Valid only from RUNNING, RUNNABLE, or ASYNC_WAITING.
func (t *Thread) AsyncReturn(rv, rv2 Value) {
	if t.status != Running && t.status != Runnable && t.status != AsyncWaiting {
		assertViolation(t.pool.Debug, "AsyncReturn called from invalid status %s", t.status)
		return
	}
	t.popFrame()
	if caller := t.topFrame(); caller != nil {
		caller.ScheduleResume(t, rv, rv2)
	}
	if t.status != Running {
		t.SetStatus(Runnable)
	}
}

// ThrowException unwinds the stack looking for a frame that will
// handle exc, dispatching it as uncaught if none does.
func (t *Thread) ThrowException(exc Value) {
	if t.status != Running && t.status != Runnable && t.status != AsyncWaiting {
		assertViolation(t.pool.Debug, "ThrowException called from invalid status %s", t.status)
		return
	}
	if top := t.topFrame(); top != nil && top.Kind() == FrameInternal {
		t.popFrame()
	}
	t.SetStatus(Runnable)

	for {
		top := t.topFrame()
		if top == nil {
			break
		}
		if top.ScheduleException(t, exc) {
			return
		}
		t.popFrame()
	}

	// Stack emptied: uncaught dispatch.
	if t.log != nil {
		t.log.Warn("uncaught exception", "class", exceptionClassName(exc))
	}
	if t.bridge != nil {
		t.bridge.DispatchUncaughtException(exc)
	}
}

// notifyWoken is invoked by a Monitor when this thread is released
// from wait()/notifyAll(): WAITING -> RUNNABLE on interrupt with
// immediate lock reacquisition, or -> UNINTERRUPTABLY_BLOCKED
// otherwise. The reference monitor always grants immediate
// reacquisition in this core's cooperative model, since there is no
// second thread to race against.
func (t *Thread) notifyWoken() {
	if t.status == Waiting || t.status == TimedWaiting {
		t.SetStatus(Runnable)
		t.pool.threadRunnable(t)
	}
}
