package hcb

import "fmt"

// Opcode is the stable, closed enumeration of HCB instructions. Values are
// assigned to match the canonical list in spec.md §6; unknown bytes must be
// rejected rather than silently ignored once execution (as opposed to
// disassembly) is involved.
type Opcode byte

const (
	OpNop Opcode = iota
	OpInitStack
	OpCall
	OpSyscall
	OpRet
	OpRetV
	OpJmp
	OpJz

	OpPushNil
	OpPushTrue
	OpPushI8
	OpPushI16
	OpPushI32
	OpPushF32
	OpPushString

	OpPushGlobal
	OpPushLocal
	OpPopGlobal
	OpPopLocal

	OpPushGlobalTable
	OpPushLocalTable
	OpPopGlobalTable
	OpPopLocalTable

	OpPushTop
	OpPushReturn

	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	OpBitTest
	OpAnd
	OpOr
	OpSetEq
	OpSetNe
	OpSetGt
	OpSetLe
	OpSetLt
	OpSetGe

	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpNop:             "nop",
	OpInitStack:       "init_stack",
	OpCall:            "call",
	OpSyscall:         "syscall",
	OpRet:             "ret",
	OpRetV:            "retv",
	OpJmp:             "jmp",
	OpJz:              "jz",
	OpPushNil:         "push_nil",
	OpPushTrue:        "push_true",
	OpPushI8:          "push_i8",
	OpPushI16:         "push_i16",
	OpPushI32:         "push_i32",
	OpPushF32:         "push_f32",
	OpPushString:      "push_string",
	OpPushGlobal:      "push_global",
	OpPushLocal:       "push_local",
	OpPopGlobal:       "pop_global",
	OpPopLocal:        "pop_local",
	OpPushGlobalTable: "push_global_table",
	OpPushLocalTable:  "push_local_table",
	OpPopGlobalTable:  "pop_global_table",
	OpPopLocalTable:   "pop_local_table",
	OpPushTop:         "push_top",
	OpPushReturn:      "push_return",
	OpNeg:             "neg",
	OpAdd:             "add",
	OpSub:             "sub",
	OpMul:             "mul",
	OpDiv:             "div",
	OpMod:             "mod",
	OpBitTest:         "bit_test",
	OpAnd:             "and",
	OpOr:              "or",
	OpSetEq:           "set_eq",
	OpSetNe:           "set_ne",
	OpSetGt:           "set_gt",
	OpSetLe:           "set_le",
	OpSetLt:           "set_lt",
	OpSetGe:           "set_ge",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return "?unknown?"
}

func (op Opcode) known() bool { return op < opcodeCount && opcodeNames[op] != "" }

// Operand is the typed inline payload that follows an opcode. Exactly one
// field is meaningful, selected by which opcode produced it; OperandNone
// instructions leave every field zero.
type OperandKind byte

const (
	OperandNone OperandKind = iota
	OperandU8x2             // InitStack: arg_count, local_count
	OperandAddr             // Call, Jmp, Jz: u32 target address
	OperandU16              // Syscall: syscall id; PushGlobal/PopGlobal/*Table: global id
	OperandI8               // PushI8; PushLocal/PopLocal/*Table: local id
	OperandI16              // PushI16
	OperandI32              // PushI32
	OperandF32              // PushF32
	OperandString           // PushString
)

// Operand carries the decoded payload for one instruction. Only the field
// matching Kind is populated.
type Operand struct {
	Kind    OperandKind
	U8a, U8b uint8
	U32     uint32
	I32     int32
	F32     float32
	Str     string
}

// Instruction is the decoded (address, opcode, operand) triple produced by
// the ahead-of-time disassembler. The execution engine decodes the same
// shape inline, one instruction at a time, without materializing a slice.
type Instruction struct {
	Address uint32
	Opcode  Opcode
	Operand Operand
}

func (ins Instruction) String() string {
	switch ins.Operand.Kind {
	case OperandNone:
		return ins.Opcode.String()
	case OperandU8x2:
		return fmt.Sprintf("%s %d %d", ins.Opcode, ins.Operand.U8a, ins.Operand.U8b)
	case OperandAddr:
		return fmt.Sprintf("%s 0x%x", ins.Opcode, ins.Operand.U32)
	case OperandU16:
		return fmt.Sprintf("%s %d", ins.Opcode, ins.Operand.U32)
	case OperandI8, OperandI16, OperandI32:
		return fmt.Sprintf("%s %d", ins.Opcode, ins.Operand.I32)
	case OperandF32:
		return fmt.Sprintf("%s %g", ins.Opcode, ins.Operand.F32)
	case OperandString:
		return fmt.Sprintf("%s %q", ins.Opcode, ins.Operand.Str)
	default:
		return ins.Opcode.String()
	}
}

// decodeOne reads one opcode and its inline operand from r, whatever the
// current position is. It is shared by the disassembler and the execution
// engine's fetch step so the two can never disagree about layout.
func decodeOne(r *Reader) (Opcode, Operand, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, Operand{}, err
	}
	op := Opcode(b)

	switch op {
	case OpInitStack:
		a, err := r.ReadU8()
		if err != nil {
			return op, Operand{}, err
		}
		l, err := r.ReadU8()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandU8x2, U8a: a, U8b: l}, nil

	case OpCall, OpJmp, OpJz:
		addr, err := r.ReadU32()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandAddr, U32: addr}, nil

	case OpSyscall:
		id, err := r.ReadU16()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandU16, U32: uint32(id)}, nil

	case OpPushI8:
		v, err := r.ReadI8()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandI8, I32: int32(v)}, nil

	case OpPushI16:
		v, err := r.ReadI16()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandI16, I32: int32(v)}, nil

	case OpPushI32:
		v, err := r.ReadI32()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandI32, I32: v}, nil

	case OpPushF32:
		v, err := r.ReadF32()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandF32, F32: v}, nil

	case OpPushString:
		s, err := r.ReadString()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandString, Str: s}, nil

	case OpPushGlobal, OpPopGlobal, OpPushGlobalTable, OpPopGlobalTable:
		id, err := r.ReadU16()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandU16, U32: uint32(id)}, nil

	case OpPushLocal, OpPopLocal, OpPushLocalTable, OpPopLocalTable:
		id, err := r.ReadI8()
		if err != nil {
			return op, Operand{}, err
		}
		return op, Operand{Kind: OperandI8, I32: int32(id)}, nil

	default:
		// Unknown opcodes (and all zero-operand opcodes) have no inline
		// payload. The disassembler tolerates unknown bytes; the execution
		// engine rejects them when dispatched (see ScriptContext.step).
		return op, Operand{}, nil
	}
}

// Disassemble decodes every instruction in [4, codeEnd) of r ahead of
// time, for external listing tools. It never executes anything and
// tolerates unknown opcodes by recording them with OperandNone.
func Disassemble(r *Reader, codeEnd uint32) ([]Instruction, error) {
	r.SeekTo(4)
	var out []Instruction
	for r.Position() < codeEnd {
		addr := r.Position()
		op, operand, err := decodeOne(r)
		if err != nil {
			return out, err
		}
		out = append(out, Instruction{Address: addr, Opcode: op, Operand: operand})
	}
	return out, nil
}
