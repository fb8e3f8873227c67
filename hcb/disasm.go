package hcb

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// FormatListing renders a decoded instruction stream as an aligned table,
// resolving Syscall operands to their declared names via meta so a reader
// doesn't have to cross-reference the syscall table by hand.
func FormatListing(w io.Writer, instructions []Instruction, meta *ScriptMetadata) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"addr", "opcode", "operand"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, ins := range instructions {
		table.Append([]string{
			fmt.Sprintf("0x%08x", ins.Address),
			ins.Opcode.String(),
			formatOperand(ins, meta),
		})
	}
	table.Render()
}

func formatOperand(ins Instruction, meta *ScriptMetadata) string {
	if ins.Opcode == OpSyscall {
		id := uint16(ins.Operand.U32)
		if decl, ok := meta.SyscallByOrdinal(id); ok {
			return fmt.Sprintf("%d  ; %s/%d", id, decl.Name, decl.ArgCount)
		}
		return fmt.Sprintf("%d  ; <unresolved>", id)
	}

	switch ins.Operand.Kind {
	case OperandNone:
		return ""
	case OperandU8x2:
		return fmt.Sprintf("args=%d locals=%d", ins.Operand.U8a, ins.Operand.U8b)
	case OperandAddr:
		return fmt.Sprintf("0x%08x", ins.Operand.U32)
	case OperandU16:
		return fmt.Sprintf("%d", ins.Operand.U32)
	case OperandI8, OperandI16, OperandI32:
		return fmt.Sprintf("%d", ins.Operand.I32)
	case OperandF32:
		return fmt.Sprintf("%g", ins.Operand.F32)
	case OperandString:
		return fmt.Sprintf("%q", ins.Operand.Str)
	default:
		return ""
	}
}
