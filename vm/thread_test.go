package vm

import "testing"

func TestSetStatusIgnoresRunningToRunnable(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	th := NewThread(p, nil, nil, false)
	th.setStatusLocked(Running)

	th.SetStatus(Runnable)

	if th.Status() != Running {
		t.Errorf("status = %s, want RUNNING (the request should be ignored)", th.Status())
	}
}

// TestImmortalThreadNeverTerminates checks that a TERMINATED request
// against an immortal thread is dropped: its status does not become
// TERMINATED and the pool's empty callback does not fire.
func TestImmortalThreadNeverTerminates(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	fired := 0
	p.SetEmptyCallback(func() { fired++ })

	th := NewThread(p, nil, nil, false)
	th.SetImmortal(true)
	p.AddThread(th)
	th.setStatusLocked(Running)

	th.SetStatus(Terminated)

	if th.Status() == Terminated {
		t.Error("immortal thread must never observe TERMINATED")
	}
	if fired != 0 {
		t.Error("empty callback must not fire from a dropped immortal termination")
	}
}

func TestAsyncReturnResumesCaller(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	th := NewThread(p, nil, nil, false)
	th.setStatusLocked(Running)

	code := make([]byte, 10)
	code[0] = OpInvokeVirtual
	caller := NewCompiledMethod(t, "Foo", "m", "()I", TypeInt, code, 4, 2)
	callerFrame := NewBytecodeFrame(caller, nil)
	th.PushFrame(callerFrame)

	callee := NewCompiledMethodBuilder("Foo", "callee", "()I").ReturnType(TypeInt).Code([]byte{OpIReturn}, 2, 0).Build()
	calleeFrame := NewBytecodeFrame(callee, nil)
	th.PushFrame(calleeFrame)

	th.AsyncReturn(Value{Kind: KindInt, Num: 9}, AbsentValue)

	if th.topFrame() != Frame(callerFrame) {
		t.Fatal("callee frame should have been popped")
	}
	if len(callerFrame.Stack) != 1 || callerFrame.Stack[0].Num != 9 {
		t.Errorf("caller stack = %+v, want a single 9", callerFrame.Stack)
	}
	if callerFrame.PC != 3 {
		t.Errorf("caller pc = %d, want 3 (invokevirtual is 3 bytes)", callerFrame.PC)
	}
}

func TestThrowExceptionDispatchesUncaughtWhenStackEmpties(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	var uncaught Value
	th := NewThread(p, NewSimpleThreadBridge(false, nil, func(exc Value) { uncaught = exc }), nil, false)
	th.setStatusLocked(Running)

	method := NewCompiledMethodBuilder("Foo", "m", "()V").ReturnType(TypeVoid).Code([]byte{OpAThrow}, 2, 0).Build()
	frame := NewBytecodeFrame(method, nil)
	th.PushFrame(frame)

	exc := NewJavaException("java/lang/RuntimeException", "boom")
	th.ThrowException(exc)

	if uncaught.Ref == nil {
		t.Fatal("expected an uncaught dispatch")
	}
	if exceptionClassName(uncaught) != "java/lang/RuntimeException" {
		t.Errorf("uncaught exception class = %s", exceptionClassName(uncaught))
	}
	if len(th.stack) != 0 {
		t.Errorf("stack should be fully unwound, got depth %d", len(th.stack))
	}
}

// TestThrowExceptionPopsLeadingInternalFrame: a throw_exception call
// that lands with a not-yet-run InternalFrame on top discards that
// stale continuation outright — it is never a legal exception handler
// — and resumes unwinding from the bytecode frame beneath it.
func TestThrowExceptionPopsLeadingInternalFrame(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	th := NewThread(p, nil, nil, false)
	th.setStatusLocked(Running)

	method := NewCompiledMethodBuilder("Foo", "m", "()V").
		ReturnType(TypeVoid).
		Code([]byte{OpNop, OpReturn}, 2, 0).
		AddExceptionHandler(0, 2, 1, CatchTypeAny).
		Build()
	frame := NewBytecodeFrame(method, nil)
	th.PushFrame(frame)

	ranCallback := false
	internal := NewInternalFrame(func(exc, value Value) { ranCallback = true })
	th.PushFrame(internal)

	exc := NewJavaException("java/lang/Error", "x")
	th.ThrowException(exc)

	if ranCallback {
		t.Error("a stale, not-yet-run internal frame must be discarded, not asked to handle the exception")
	}
	if th.topFrame() != Frame(frame) {
		t.Fatal("unwinding should resume from the bytecode frame beneath the discarded internal frame")
	}
	if frame.PC != 1 {
		t.Errorf("bytecode frame pc = %d, want 1 (its CatchTypeAny handler)", frame.PC)
	}
}

func TestStackTraceHidesInternalFrames(t *testing.T) {
	p := newTestPool()
	defer p.Shutdown()
	th := NewThread(p, nil, nil, false)

	method := NewCompiledMethod(t, "Foo", "m", "()V", TypeVoid, []byte{OpReturn}, 2, 0)
	bf := NewBytecodeFrame(method, nil)
	th.PushFrame(bf)
	th.PushFrame(NewInternalFrame(func(exc, value Value) {}))

	trace := th.StackTrace()
	if len(trace) != 1 {
		t.Fatalf("trace = %+v, want exactly 1 visible frame", trace)
	}
	if trace[0].Method != MethodMeta(method) {
		t.Error("the visible frame should be the bytecode frame, not the internal one")
	}
}
