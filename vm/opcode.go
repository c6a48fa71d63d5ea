package vm

// OpcodeFunc executes one instruction. It receives the current pc and
// returns the new one; opcodes own pc advancement except for invoke
// opcodes, whose callee's return advances the caller via
// ScheduleResume. An opcode signals "yield to the thread loop" by
// setting f.ReturnToThreadLoop directly.
type OpcodeFunc func(t *Thread, f *BytecodeFrame, code []byte, pc int) int

// OpcodeTable is the external opcode dispatch table. Bytecode
// semantics themselves are deliberately out of scope for this core;
// it only needs a mapping from opcode byte to behavior.
type OpcodeTable interface {
	Dispatch(op byte) OpcodeFunc
}

// OpcodeLayout is disassembly-only metadata describing how many
// operand bytes follow an opcode and how to interpret them. It has no
// bearing on execution.
type OpcodeLayout int

const (
	LayoutOpcodeOnly OpcodeLayout = iota
	LayoutConstantPool
	LayoutConstantPoolUint8
	LayoutConstantPoolAndUint8Value
	LayoutUint8Value
	LayoutUint8AndInt8Value
	LayoutInt8Value
	LayoutInt16Value
	LayoutInt32Value
	LayoutArrayType
	LayoutWide
)

// InvokeWidth returns the number of bytes a given invoke-family opcode
// occupies, for ScheduleResume's pc advancement. invokeinterface (and
// its variants) is 5 bytes; every other invoke family
// (special/static/virtual/dynamic/handle/basic/linkTo*) is 3.
func InvokeWidth(op byte) (int, bool) {
	switch {
	case invokeFamily3[op]:
		return 3, true
	case invokeFamily5[op]:
		return 5, true
	default:
		return 0, false
	}
}

// Canonical JVM invoke opcode values (JVM Spec chapter 6), enough to
// drive InvokeWidth without a full opcode set.
const (
	OpInvokeVirtual   byte = 0xb6
	OpInvokeSpecial   byte = 0xb7
	OpInvokeStatic    byte = 0xb8
	OpInvokeInterface byte = 0xb9
	OpInvokeDynamic   byte = 0xba
)

var invokeFamily3 = map[byte]bool{
	OpInvokeVirtual: true,
	OpInvokeSpecial: true,
	OpInvokeStatic:  true,
	OpInvokeDynamic: true,
}

var invokeFamily5 = map[byte]bool{
	OpInvokeInterface: true,
}

// ---------------------------------------------------------------------------
// demoOpcodeTable: bundled reference table for tests and cmd/jvmcore-demo
// ---------------------------------------------------------------------------

// Demo opcode set — just enough to drive the thread loop through a
// return, an invoke, a throw, and a no-op, without pulling in real
// bytecode semantics.
const (
	OpNop    byte = 0x00
	OpReturn byte = 0xb1 // void return, 1 byte
	OpIReturn byte = 0xac // int return, pops stack top
	OpAThrow byte = 0xbf
)

type demoOpcodeTable struct{}

// NewDemoOpcodeTable returns a minimal OpcodeTable covering nop,
// return, ireturn, athrow, and the invoke* family, sufficient to
// exercise the thread/frame/scheduler machinery end to end.
func NewDemoOpcodeTable() OpcodeTable { return demoOpcodeTable{} }

func (demoOpcodeTable) Dispatch(op byte) OpcodeFunc {
	switch {
	case op == OpNop:
		return opNop
	case op == OpReturn:
		return opReturn
	case op == OpIReturn:
		return opIReturn
	case op == OpAThrow:
		return opAThrow
	case invokeFamily3[op] || invokeFamily5[op]:
		return opInvoke
	default:
		return opUnknown
	}
}

func opNop(t *Thread, f *BytecodeFrame, code []byte, pc int) int {
	return pc + 1
}

func opReturn(t *Thread, f *BytecodeFrame, code []byte, pc int) int {
	f.ReturnToThreadLoop = true
	t.AsyncReturn(AbsentValue, AbsentValue)
	return pc + 1
}

func opIReturn(t *Thread, f *BytecodeFrame, code []byte, pc int) int {
	f.ReturnToThreadLoop = true
	rv := f.pop()
	t.AsyncReturn(rv, AbsentValue)
	return pc + 1
}

func opAThrow(t *Thread, f *BytecodeFrame, code []byte, pc int) int {
	f.ReturnToThreadLoop = true
	exc := f.pop()
	t.ThrowException(exc)
	return pc + 1
}

// opInvoke is a placeholder invoke used by tests: it treats the
// method reference as absent and immediately synthesizes a native
// call returning the demo sentinel (int 42), so tests can exercise
// ScheduleResume's width-advance behavior without a real class loader
// resolving a callee. It leaves pc on the invoke; the callee's return
// advances it.
func opInvoke(t *Thread, f *BytecodeFrame, code []byte, pc int) int {
	f.ReturnToThreadLoop = true
	callee := NewCompiledMethodBuilder("Demo", "sentinel", "()I").
		ReturnType(TypeInt).
		Native(func(t *Thread, receiver Value, args []Value) (Value, bool) {
			return Value{Kind: KindInt, Num: 42}, true
		}).
		Build()
	t.PushFrame(NewNativeFrame(callee, AbsentValue, callee.GetNativeFunction(), nil))
	return pc
}

func opUnknown(t *Thread, f *BytecodeFrame, code []byte, pc int) int {
	f.ReturnToThreadLoop = true
	t.ThrowException(NewJavaException("java/lang/InternalError", "unknown opcode"))
	return pc + 1
}
