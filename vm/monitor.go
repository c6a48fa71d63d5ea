package vm

import "sync"

// Monitor is the external monitor service entry, exit, notify, and
// wait-state queries delegate to. Monitor internals (wait queues,
// reentrancy counts, notify ordering) are out of scope for this
// core — the thread/frame machinery only needs the operations below.
type Monitor interface {
	// Enter attempts to acquire the monitor on behalf of t. It
	// returns true for immediate acquisition. On false, it has
	// arranged for onAcquire to be invoked (via the pool's event
	// loop) once the monitor becomes available, and the caller is
	// responsible for leaving the thread in a blocked/waiting state.
	Enter(t *Thread, onAcquire func()) bool
	Exit(t *Thread)
	NotifyAll(t *Thread)
	IsWaiting(t *Thread) bool
	IsTimedWaiting(t *Thread) bool
	IsBlocked(t *Thread) bool
}

// defaultMonitor is the bundled reference Monitor, grounded on the
// teacher's MutexObject (vm/mutex.go): a sync.Mutex guarding a simple
// owner/waiter bookkeeping struct, adapted from blocking Lock/Unlock
// calls to the non-blocking callback contract Monitor.Enter requires
// — this core's single goroutine must never block on anything.
type defaultMonitor struct {
	mu      sync.Mutex
	owner   *Thread
	waiters []monitorWaiter
	waiting map[*Thread]waitKind
	pool    *Pool
}

type waitKind int

const (
	waitNone waitKind = iota
	waitIndefinite
	waitTimed
)

type monitorWaiter struct {
	thread    *Thread
	onAcquire func()
}

// NewMonitor creates a reference Monitor bound to pool's event loop
// for deferred acquisition callbacks.
func NewMonitor(pool *Pool) Monitor {
	return &defaultMonitor{
		pool:    pool,
		waiting: make(map[*Thread]waitKind),
	}
}

func (m *defaultMonitor) Enter(t *Thread, onAcquire func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owner == nil {
		m.owner = t
		return true
	}
	if m.owner == t {
		// Reentrant monitors are a class-loader/object-model concern
		// in a real JVM; the reference monitor here treats re-entry
		// as immediate success, matching single-owner semantics tests
		// rely on.
		return true
	}
	m.waiters = append(m.waiters, monitorWaiter{thread: t, onAcquire: onAcquire})
	return false
}

func (m *defaultMonitor) Exit(t *Thread) {
	m.mu.Lock()
	if m.owner != t {
		m.mu.Unlock()
		return
	}
	m.owner = nil
	var next *monitorWaiter
	if len(m.waiters) > 0 {
		w := m.waiters[0]
		m.waiters = m.waiters[1:]
		m.owner = w.thread
		next = &w
	}
	m.mu.Unlock()

	if next != nil && next.onAcquire != nil {
		if m.pool != nil {
			m.pool.dispatcher.Defer(next.onAcquire)
		} else {
			next.onAcquire()
		}
	}
}

func (m *defaultMonitor) NotifyAll(t *Thread) {
	m.mu.Lock()
	waiting := make([]*Thread, 0, len(m.waiting))
	for th := range m.waiting {
		waiting = append(waiting, th)
		delete(m.waiting, th)
	}
	m.mu.Unlock()

	for _, th := range waiting {
		th.notifyWoken()
	}
}

func (m *defaultMonitor) IsWaiting(t *Thread) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting[t] == waitIndefinite
}

func (m *defaultMonitor) IsTimedWaiting(t *Thread) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting[t] == waitTimed
}

func (m *defaultMonitor) IsBlocked(t *Thread) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.waiters {
		if w.thread == t {
			return true
		}
	}
	return false
}

// markWaiting and clearWaiting let a thread's wait()/timedWait() native
// methods record which wait sub-state this monitor should report,
// satisfying the invariant that status in {WAITING, TIMED_WAITING}
// implies monitor_block reports the matching sub-state.
func (m *defaultMonitor) markWaiting(t *Thread, kind waitKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waiting[t] = kind
}

func (m *defaultMonitor) clearWaiting(t *Thread) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waiting, t)
}
