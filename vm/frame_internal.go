package vm

// InternalFrame is a synthetic frame used by the runtime to re-enter
// host code when a Java invocation it initiated completes. It is
// never visible in stack traces and cannot itself catch an exception
// thrown during its own Run — during unwinding it must be popped
// first, before continuing to walk the stack.
type InternalFrame struct {
	IsException bool
	Value       Value
	Callback    func(exc Value, value Value)

	ran bool
}

func NewInternalFrame(callback func(exc Value, value Value)) *InternalFrame {
	return &InternalFrame{Callback: callback}
}

func (f *InternalFrame) Kind() FrameKind { return FrameInternal }

func (f *InternalFrame) Run(t *Thread) {
	if f.ran {
		return
	}
	f.ran = true
	t.popFrame()
	t.SetStatus(AsyncWaiting)
	if f.IsException {
		f.Callback(f.Value, AbsentValue)
	} else {
		f.Callback(AbsentValue, f.Value)
	}
}

func (f *InternalFrame) ScheduleResume(t *Thread, rv, rv2 Value) {
	f.IsException = false
	f.Value = rv
}

func (f *InternalFrame) ScheduleException(t *Thread, exc Value) bool {
	f.IsException = true
	f.Value = exc
	return true
}

// StackTraceFrame hides internal frames from Java-visible traces.
func (f *InternalFrame) StackTraceFrame() *STFrame {
	return nil
}
