package vm

import "testing"

// TestBytecodeFrameSynchronizedEntryBlocksThenRuns checks that a
// synchronized method's frame blocks on its monitor, then completes
// the entry and runs once the monitor becomes available.
func TestBytecodeFrameSynchronizedEntryBlocksThenRuns(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	mon := NewMonitor(p)
	owner := NewThread(p, nil, nil, false)
	mon.Enter(owner, nil) // pre-held by someone else

	th := NewThread(p, nil, nil, false)
	p.AddThread(th)
	code := []byte{OpReturn}
	method := NewCompiledMethodBuilder("Foo", "sync", "()V").
		ReturnType(TypeVoid).
		Synchronized().
		Lock(mon).
		Code(code, 4, 2).
		Build()

	frame := NewBytecodeFrame(method, nil)
	th.setStatusLocked(Running)
	th.PushFrame(frame)
	frame.Run(th)

	if th.Status() != Blocked {
		t.Fatalf("status = %s, want BLOCKED (monitor held elsewhere)", th.Status())
	}
	if frame.LockedMethodLock {
		t.Error("LockedMethodLock should not be set while blocked")
	}

	mon.Exit(owner)
	p.dispatcher.Sync() // runs the onAcquire callback, which enqueues scheduling
	p.dispatcher.Sync() // runs the scheduler, driving the thread to completion

	if !frame.LockedMethodLock {
		t.Error("LockedMethodLock should be set once entry is confirmed")
	}
	if th.Status() != Terminated {
		t.Errorf("status after running to completion = %s, want TERMINATED", th.Status())
	}
}

// TestBytecodeFrameExceptionCatchTypeAny verifies the universal handler
// match clears the stack, pushes the exception, and sets pc to the
// handler.
func TestBytecodeFrameExceptionCatchTypeAny(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	th := NewThread(p, nil, nil, false)
	th.setStatusLocked(Running)

	method := NewCompiledMethodBuilder("Foo", "m", "()V").
		ReturnType(TypeVoid).
		Code([]byte{OpNop, OpAThrow, OpNop, OpNop, OpReturn}, 4, 2).
		AddExceptionHandler(0, 5, 4, CatchTypeAny).
		Build()

	frame := NewBytecodeFrame(method, nil)
	frame.PC = 1
	frame.push(Value{Kind: KindInt, Num: 1})
	th.PushFrame(frame)

	exc := NewJavaException("java/lang/RuntimeException", "boom")
	handled := frame.ScheduleException(th, exc)

	if !handled {
		t.Fatal("CatchTypeAny handler should always match")
	}
	if frame.PC != 4 {
		t.Errorf("pc = %d, want 4", frame.PC)
	}
	if len(frame.Stack) != 1 || frame.Stack[0].Ref == nil {
		t.Fatalf("stack after handling should contain only the exception, got %+v", frame.Stack)
	}
}

// TestBytecodeFrameExceptionResolvedAssignableMatch checks a handler
// whose catch type is already resolved and which the thrown
// exception's class is assignable to.
func TestBytecodeFrameExceptionResolvedAssignableMatch(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	cl := NewStaticClassLoader(p)
	cl.Register("java/lang/Exception")
	cl.Register("java/lang/RuntimeException", "java/lang/Exception")

	th := NewThread(p, nil, cl, false)
	th.setStatusLocked(Running)

	method := NewCompiledMethodBuilder("Foo", "m", "()V").
		ReturnType(TypeVoid).
		Code([]byte{OpNop, OpAThrow, OpNop, OpNop, OpReturn}, 4, 2).
		AddExceptionHandler(0, 5, 4, "java/lang/Exception").
		Build()

	frame := NewBytecodeFrame(method, nil)
	frame.PC = 1
	th.PushFrame(frame)

	exc := NewJavaException("java/lang/RuntimeException", "boom")
	if !frame.ScheduleException(th, exc) {
		t.Fatal("handler should match: RuntimeException is assignable to Exception")
	}
	if frame.PC != 4 {
		t.Errorf("pc = %d, want 4", frame.PC)
	}
}

// TestBytecodeFrameExceptionAsyncResolutionRetries checks that when
// the catch type is not yet resolved, resolution is deferred and the
// exception is re-thrown against the same frame once it completes.
func TestBytecodeFrameExceptionAsyncResolutionRetries(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	// The catch type is not registered yet, so the loader does not
	// report it as resolved on the first walk of the exception table.
	cl := NewStaticClassLoader(p)

	bridgeCaught := Value{}
	th := NewThread(p, NewSimpleThreadBridge(false, nil, func(exc Value) { bridgeCaught = exc }), cl, false)
	th.setStatusLocked(Running)

	method := NewCompiledMethodBuilder("Foo", "m", "()V").
		ReturnType(TypeVoid).
		Code([]byte{OpNop, OpAThrow, OpNop, OpNop, OpReturn}, 4, 2).
		AddExceptionHandler(0, 5, 4, "java/lang/NullPointerException").
		Build()

	frame := NewBytecodeFrame(method, nil)
	frame.PC = 1
	th.PushFrame(frame)

	// Hold the dispatcher so the deferred resolution cannot run before
	// the class is registered and the waiting status is observed.
	gate := make(chan struct{})
	p.dispatcher.Defer(func() { <-gate })

	exc := NewJavaException("java/lang/NullPointerException", "npe")
	if !frame.ScheduleException(th, exc) {
		t.Fatal("first call should begin async resolution and claim the exception")
	}
	if th.Status() != AsyncWaiting {
		t.Fatalf("status = %s, want ASYNC_WAITING during resolution", th.Status())
	}

	cl.Register("java/lang/NullPointerException")
	close(gate)
	p.dispatcher.Sync()

	if frame.PC != 4 {
		t.Errorf("pc after resolved retry = %d, want 4 (handler reached)", frame.PC)
	}
	if bridgeCaught.Ref != nil {
		t.Error("exception should have been caught, not dispatched as uncaught")
	}
}

// TestBytecodeFrameExceptionUnresolvableClassMemoized checks that a
// catch type which fails to resolve is memoized per-method and not
// retried, falling through to the next table entry (or uncaught
// dispatch) instead of looping forever.
func TestBytecodeFrameExceptionUnresolvableClassMemoized(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	cl := NewStaticClassLoader(p)
	cl.MarkUnresolvable("com/missing/Handler")

	var uncaught Value
	th := NewThread(p, NewSimpleThreadBridge(false, nil, func(exc Value) { uncaught = exc }), cl, false)
	th.setStatusLocked(Running)

	method := NewCompiledMethodBuilder("Foo", "m", "()V").
		ReturnType(TypeVoid).
		Code([]byte{OpNop, OpAThrow, OpNop, OpNop, OpReturn}, 4, 2).
		AddExceptionHandler(0, 5, 4, "com/missing/Handler").
		Build()

	frame := NewBytecodeFrame(method, nil)
	frame.PC = 1
	th.PushFrame(frame)

	exc := NewJavaException("java/lang/RuntimeException", "boom")
	frame.ScheduleException(th, exc)
	p.dispatcher.Sync()

	if !methodFailedCatchTypes(method, "com/missing/Handler") {
		t.Error("unresolvable catch type should be memoized for this method")
	}
	if uncaught.Ref == nil {
		t.Error("exception should have been dispatched as uncaught: no handler could match")
	}
}

func TestBytecodeFrameScheduleResumeAdvancesPCAndPushes(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	th := NewThread(p, nil, nil, false)
	code := make([]byte, 10)
	code[2] = OpInvokeInterface
	method := NewCompiledMethod(t, "Foo", "m", "()I", TypeInt, code, 4, 2)
	frame := NewBytecodeFrame(method, nil)
	frame.PC = 2

	frame.ScheduleResume(th, Value{Kind: KindInt, Num: 7}, AbsentValue)

	if frame.PC != 7 {
		t.Errorf("pc = %d, want 7 (invokeinterface is 5 bytes)", frame.PC)
	}
	if len(frame.Stack) != 1 || frame.Stack[0].Num != 7 {
		t.Errorf("stack = %+v, want a single 7", frame.Stack)
	}
}
