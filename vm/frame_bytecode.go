package vm

import "sync"

// BytecodeFrame drives the opcode dispatch loop for a method whose
// body is JVM bytecode. Stack/locals growth and frame-local
// bookkeeping are grounded on the teacher's CallFrame
// (vm/interpreter.go): a base-pointer-relative operand area plus a
// fixed-size temps vector, dynamically grown rather than panicking on
// overflow.
type BytecodeFrame struct {
	Method MethodMeta
	PC     int
	Stack  []Value
	Locals []Value

	ReturnToThreadLoop bool
	LockedMethodLock   bool
}

// NewBytecodeFrame constructs a frame over method with the given
// initial locals (the converted argument vector).
func NewBytecodeFrame(method MethodMeta, locals []Value) *BytecodeFrame {
	code := method.Code()
	maxStack := 8
	if code != nil && code.MaxStack > 0 {
		maxStack = code.MaxStack
	}
	return &BytecodeFrame{
		Method: method,
		Locals: locals,
		Stack:  make([]Value, 0, maxStack),
	}
}

func (f *BytecodeFrame) Kind() FrameKind { return FrameBytecode }

func (f *BytecodeFrame) push(v Value) {
	f.Stack = append(f.Stack, v)
}

func (f *BytecodeFrame) pop() Value {
	n := len(f.Stack)
	if n == 0 {
		panic(&InvariantViolation{Msg: "BytecodeFrame.pop: stack underflow"})
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v
}

// Run attempts synchronized method entry on first call, then
// dispatches opcodes until one of them sets ReturnToThreadLoop.
func (f *BytecodeFrame) Run(t *Thread) {
	if f.PC == 0 && f.Method.IsSynchronized() && !f.LockedMethodLock {
		mon := f.Method.MethodLock(t, f)
		acquired := mon.Enter(t, func() {
			f.LockedMethodLock = true
			t.pool.threadUnblocked(t)
		})
		if !acquired {
			t.monitorBlock = mon
			t.setStatusLocked(Blocked)
			return
		}
		f.LockedMethodLock = true
	}

	f.ReturnToThreadLoop = false
	code := f.Method.Code().Code
	for !f.ReturnToThreadLoop {
		if f.PC >= len(code) {
			assertViolation(t.pool.Debug, "BytecodeFrame.Run: pc %d past end of code (len %d)", f.PC, len(code))
			f.ReturnToThreadLoop = true
			t.AsyncReturn(AbsentValue, AbsentValue)
			return
		}
		op := code[f.PC]
		fn := t.pool.opcodes.Dispatch(op)
		f.PC = fn(t, f, code, f.PC)
	}
}

// ScheduleResume advances the caller's pc past the invoke opcode by
// the invoke family's width, and pushes non-absent return values onto
// the operand stack.
func (f *BytecodeFrame) ScheduleResume(t *Thread, rv, rv2 Value) {
	code := f.Method.Code().Code
	if f.PC >= len(code) {
		assertViolation(t.pool.Debug, "ScheduleResume: pc %d out of range", f.PC)
		return
	}
	op := code[f.PC]
	width, ok := InvokeWidth(op)
	if !ok {
		assertViolation(t.pool.Debug, "ScheduleResume: resuming from non-invoke opcode 0x%02x at pc %d", op, f.PC)
		width = 3
	}
	f.PC += width
	if !rv.IsAbsent() {
		f.push(rv)
	}
	if !rv2.IsAbsent() {
		f.push(rv2)
	}
}

// ScheduleException walks the method's exception table, resolving
// unresolved catch types asynchronously as needed, grounded on the
// teacher's ExceptionHandler.FindHandler walk (vm/exception.go)
// generalized from a linked handler stack to a per-method exception
// table.
func (f *BytecodeFrame) ScheduleException(t *Thread, exc Value) bool {
	code := f.Method.Code()
	if code == nil {
		return f.exitSynchronizedAndFail(t)
	}

	for _, entry := range code.ExceptionTable {
		if f.PC < entry.StartPC || f.PC >= entry.EndPC {
			continue
		}
		if entry.CatchType == CatchTypeAny {
			f.handleMatch(entry, exc)
			return true
		}

		resolved, ok := t.classLoader.GetResolvedClass(entry.CatchType)
		if !ok {
			if methodFailedCatchTypes(f.Method, entry.CatchType) {
				continue // already known unresolvable; treat as no match
			}
			f.beginAsyncResolution(t, exc, code)
			return true
		}
		if resolved.IsAssignableFrom(exceptionClassName(exc)) {
			f.handleMatch(entry, exc)
			return true
		}
	}

	return f.exitSynchronizedAndFail(t)
}

func (f *BytecodeFrame) handleMatch(entry ExceptionTableEntry, exc Value) {
	f.Stack = f.Stack[:0]
	f.push(exc)
	f.PC = entry.HandlerPC
}

func (f *BytecodeFrame) exitSynchronizedAndFail(t *Thread) bool {
	if f.Method.IsSynchronized() && f.LockedMethodLock {
		mon := f.Method.MethodLock(t, f)
		if mon != nil {
			mon.Exit(t)
		}
		f.LockedMethodLock = false
	}
	return false
}

// beginAsyncResolution gathers every still-unresolved, non-memoized
// catch type in this method's exception table and asks the class
// loader to resolve them all, re-throwing on completion.
func (f *BytecodeFrame) beginAsyncResolution(t *Thread, exc Value, code *CodeAttribute) {
	var names []string
	seen := map[string]bool{}
	for _, e := range code.ExceptionTable {
		if e.CatchType == CatchTypeAny || seen[e.CatchType] {
			continue
		}
		if _, ok := t.classLoader.GetResolvedClass(e.CatchType); ok {
			continue
		}
		if methodFailedCatchTypes(f.Method, e.CatchType) {
			continue
		}
		seen[e.CatchType] = true
		names = append(names, e.CatchType)
	}

	t.SetStatus(AsyncWaiting)
	t.classLoader.ResolveClasses(t, names, func(err error) {
		if err != nil {
			if uce, ok := err.(*UnresolvableClassError); ok {
				markMethodFailedCatchType(f.Method, uce.ClassName)
			}
		}
		t.ThrowException(exc)
	})
}

// ---------------------------------------------------------------------------
// Per-method memoization of failed catch-type resolutions, so a
// handler whose catch type can never resolve doesn't retry resolution
// forever on every exception that passes through its range.
// ---------------------------------------------------------------------------

var (
	failedCatchTypesMu sync.Mutex
	failedCatchTypes   = map[MethodMeta]map[string]bool{}
)

func methodFailedCatchTypes(m MethodMeta, catchType string) bool {
	failedCatchTypesMu.Lock()
	defer failedCatchTypesMu.Unlock()
	return failedCatchTypes[m] != nil && failedCatchTypes[m][catchType]
}

func markMethodFailedCatchType(m MethodMeta, catchType string) {
	failedCatchTypesMu.Lock()
	defer failedCatchTypesMu.Unlock()
	if failedCatchTypes[m] == nil {
		failedCatchTypes[m] = make(map[string]bool)
	}
	failedCatchTypes[m][catchType] = true
}

func (f *BytecodeFrame) StackTraceFrame() *STFrame {
	return &STFrame{
		Method:     f.Method,
		PC:         f.PC,
		StackCopy:  append([]Value(nil), f.Stack...),
		LocalsCopy: append([]Value(nil), f.Locals...),
	}
}
