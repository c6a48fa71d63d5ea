package vm

// NativeFrame wraps a host-language function exposed as a Java
// method. It runs exactly once: either synchronously, or
// asynchronously via Thread.SetStatus(AsyncWaiting) followed later by
// Thread.AsyncReturn. Grounded on the teacher's arity-specialized
// primitive wrappers (vm/method.go) for the "receiver + args in, Value
// out" shape, generalized to the two-slot / boolean-coercing return
// convention the JVM calling convention requires.
type NativeFrame struct {
	Method   MethodMeta
	Fn       NativeFunc
	Receiver Value
	Args     []Value

	ran bool
}

func NewNativeFrame(method MethodMeta, receiver Value, fn NativeFunc, args []Value) *NativeFrame {
	return &NativeFrame{Method: method, Receiver: receiver, Fn: fn, Args: args}
}

func (f *NativeFrame) Kind() FrameKind { return FrameNative }

func (f *NativeFrame) Run(t *Thread) {
	if f.ran {
		// A native frame runs exactly once; if the scheduler lands
		// back here (e.g. after an async return already popped it)
		// there is nothing left to do.
		return
	}
	f.ran = true

	rv, ok := f.Fn(t, f.Receiver, f.Args)
	if !ok {
		// The native function took the asynchronous path itself: it
		// already moved the thread to AsyncWaiting and will complete
		// via AsyncReturn later.
		return
	}

	// Only treat this as a synchronous return if the thread is still
	// running this exact frame — a native method could have, in
	// principle, driven the thread elsewhere before returning.
	if t.status != Running || t.topFrame() != Frame(f) {
		return
	}

	rv = coerceReturn(f.Method.ReturnType(), rv)
	t.AsyncReturn(rv, secondSlot(f.Method.ReturnType(), rv))
}

// coerceReturn applies the JVM native-return coercions: Z (boolean)
// values are normalized to {0,1}.
func coerceReturn(rt TypeDescriptor, rv Value) Value {
	if rt == TypeBoolean {
		if rv.Num != 0 {
			rv.Num = 1
		}
	}
	return rv
}

// secondSlot returns the second operand-stack slot for two-slot return
// types (J long, D double) — present-but-null, distinct from Absent,
// since it must still be pushed by ScheduleResume. Every other return
// type has no second slot at all.
func secondSlot(rt TypeDescriptor, rv Value) Value {
	if rt == TypeLong || rt == TypeDouble {
		return Value{Kind: KindRef}
	}
	return AbsentValue
}

func (f *NativeFrame) ScheduleResume(t *Thread, rv, rv2 Value) {
	// No-op: a native frame never sits beneath another frame as the
	// thing being resumed into mid-call; it IS the thing that resumes
	// its caller.
}

func (f *NativeFrame) ScheduleException(t *Thread, exc Value) bool {
	return false
}

func (f *NativeFrame) StackTraceFrame() *STFrame {
	return &STFrame{Method: f.Method, PC: -1}
}
