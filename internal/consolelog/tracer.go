package consolelog

import (
	"github.com/davecgh/go-spew/spew"

	"hcbvm/hcb"
)

// Tracer adapts a Logger into an hcb.Tracer, emitting one debug line per
// executed instruction. It's meant for small scripts or short windows of
// execution; attaching it to a long-running script produces a lot of output.
type Tracer struct {
	log *Logger
}

// NewTracer wraps log as an hcb.Tracer.
func NewTracer(log *Logger) *Tracer { return &Tracer{log: log} }

func (t *Tracer) TraceStep(pc uint32, op hcb.Opcode, operand hcb.Operand) {
	t.log.Debugf("pc=0x%08x %s", pc, hcb.Instruction{Address: pc, Opcode: op, Operand: operand})
}

// DumpState renders a structured snapshot of ctx's visible state (globals
// and call depth) via go-spew, useful when a ScriptRuntimeException needs
// more context than its message alone provides.
func DumpState(ctx *hcb.ScriptContext) string {
	snapshot := struct {
		PC        uint32
		CallDepth int
		Globals   []hcb.Value
	}{
		PC:        ctx.PC(),
		CallDepth: ctx.CallDepth(),
		Globals:   ctx.Globals(),
	}
	return spew.Sdump(snapshot)
}
