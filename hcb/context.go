package hcb

import "fmt"

// Tracer receives one event per executed opcode when attached to a
// ScriptContext. It exists purely for diagnostics (see internal/consolelog)
// and adds no cost to the hot loop when nil.
type Tracer interface {
	TraceStep(pc uint32, op Opcode, operand Operand)
}

// ScriptContext is the executing VM: program counter (tracked via the
// Reader's position), per-opcode handlers, the call stack, globals, and the
// single return-value register. One ScriptContext is strictly
// single-threaded; see spec.md §5.
type ScriptContext struct {
	reader    *Reader
	meta      *ScriptMetadata
	callStack *CallStack
	resolver  *SyscallResolver

	globals   []Value
	globalSet []bool

	returnValue Value
	hasReturn   bool

	tracer  Tracer
	started bool
}

// NewScriptContext builds a context ready to execute meta's script via r,
// calling out to resolver for every Syscall opcode. Globals start
// uninitialized (all absent), matching spec.md §3's lifecycle note.
func NewScriptContext(r *Reader, meta *ScriptMetadata, resolver *SyscallResolver) *ScriptContext {
	return &ScriptContext{
		reader:    r,
		meta:      meta,
		callStack: NewCallStack(),
		resolver:  resolver,
		globals:   make([]Value, meta.GlobalCount),
		globalSet: make([]bool, meta.GlobalCount),
	}
}

// SetTracer attaches (or detaches, with nil) a per-opcode trace sink.
func (ctx *ScriptContext) SetTracer(t Tracer) { ctx.tracer = t }

// Metadata returns the script's immutable descriptor.
func (ctx *ScriptContext) Metadata() *ScriptMetadata { return ctx.meta }

// Globals returns a snapshot of the global slots, with unset slots reported
// as Nil. Intended for diagnostics (see internal/consolelog.DumpState), not
// for anything on the hot execution path.
func (ctx *ScriptContext) Globals() []Value {
	out := make([]Value, len(ctx.globals))
	for i, v := range ctx.globals {
		if ctx.globalSet[i] {
			out[i] = v
		} else {
			out[i] = Nil
		}
	}
	return out
}

// CallDepth reports how many nested calls are currently active (0 while in
// the root frame).
func (ctx *ScriptContext) CallDepth() int { return ctx.callStack.Depth() }

// PC reports the address of the next instruction to be fetched.
func (ctx *ScriptContext) PC() uint32 { return ctx.reader.Position() }

// ReturnValue exposes the current contents of the return-value register.
func (ctx *ScriptContext) ReturnValue() (Value, bool) { return ctx.returnValue, ctx.hasReturn }

func (ctx *ScriptContext) setReturn(v Value) {
	ctx.returnValue = v
	ctx.hasReturn = true
}

func (ctx *ScriptContext) clearReturn() {
	ctx.returnValue = Nil
	ctx.hasReturn = false
}

func (ctx *ScriptContext) takeReturn() (Value, bool) {
	v, ok := ctx.returnValue, ctx.hasReturn
	ctx.clearReturn()
	return v, ok
}

// Execute runs the fetch-decode-execute loop until the root frame returns or
// a ScriptRuntimeException occurs. The very first call must begin with
// InitStack at entry_point; Execute seeks there itself on first invocation.
//
// Any panic escaping a handler (the Go analogue of spec.md §4.8's "any
// non-VM exception raised inside a handler") is recovered here and wrapped
// in a ScriptRuntimeException carrying the PC of the instruction that
// caused it, mirroring the teacher's recover-based reporting in
// vm/run.go's getDefaultRecoverFuncForVM.
func (ctx *ScriptContext) Execute() (err error) {
	if !ctx.started {
		ctx.reader.SeekTo(ctx.meta.EntryPoint)
		ctx.started = true
	}

	var pc uint32
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = newRuntimeErr(pc, e)
			} else {
				err = newRuntimeErrf(pc, "internal error: %v", r)
			}
		}
	}()

	for {
		pc = ctx.reader.Position()
		terminal, stepErr := ctx.step()
		if stepErr != nil {
			return stepErr
		}
		if terminal {
			return nil
		}
	}
}

// step fetches, decodes and dispatches exactly one instruction.
func (ctx *ScriptContext) step() (terminal bool, err error) {
	pc := ctx.reader.Position()
	op, operand, err := decodeOne(ctx.reader)
	if err != nil {
		// Reader-level failures (EndOfStream, InvalidData) propagate
		// unchanged, per spec.md §4.8.
		return false, err
	}

	if ctx.tracer != nil {
		ctx.tracer.TraceStep(pc, op, operand)
	}

	switch op {
	case OpNop:

	case OpInitStack:
		return false, ctx.execInitStack(pc, operand)

	case OpCall:
		return false, ctx.execCall(pc, operand)

	case OpSyscall:
		return false, ctx.execSyscall(pc, uint16(operand.U32))

	case OpRet:
		return ctx.execRet(pc)

	case OpRetV:
		return ctx.execRetV(pc)

	case OpJmp:
		ctx.reader.SeekTo(operand.U32)

	case OpJz:
		v, err := ctx.pop(pc)
		if err != nil {
			return false, err
		}
		if !v.Truthy() {
			ctx.reader.SeekTo(operand.U32)
		}

	case OpPushNil:
		ctx.callStack.Push(Nil)
	case OpPushTrue:
		ctx.callStack.Push(BoolValue(true))
	case OpPushI8, OpPushI16, OpPushI32:
		ctx.callStack.Push(IntValue(operand.I32))
	case OpPushF32:
		ctx.callStack.Push(FloatValue(operand.F32))
	case OpPushString:
		ctx.callStack.Push(StringValue(operand.Str))

	case OpPushGlobal:
		return false, ctx.execPushGlobal(pc, uint16(operand.U32))
	case OpPopGlobal:
		return false, ctx.execPopGlobal(pc, uint16(operand.U32))
	case OpPushLocal:
		return false, ctx.execPushLocal(pc, operand.I32)
	case OpPopLocal:
		return false, ctx.execPopLocal(pc, operand.I32)

	case OpPushGlobalTable:
		return false, ctx.execPushTable(pc, ctx.globalRef(uint16(operand.U32)))
	case OpPopGlobalTable:
		return false, ctx.execPopTable(pc, ctx.globalRef(uint16(operand.U32)))
	case OpPushLocalTable:
		return false, ctx.execPushTable(pc, ctx.localRef(operand.I32))
	case OpPopLocalTable:
		return false, ctx.execPopTable(pc, ctx.localRef(operand.I32))

	case OpPushTop:
		v, err := ctx.peek(pc)
		if err != nil {
			return false, err
		}
		ctx.callStack.Push(v)

	case OpPushReturn:
		v, ok := ctx.takeReturn()
		if !ok {
			return false, newRuntimeErrf(pc, "push_return with no return value present")
		}
		ctx.callStack.Push(v)

	case OpNeg:
		v, err := ctx.pop(pc)
		if err != nil {
			return false, err
		}
		r, err := arithNeg(v)
		if err != nil {
			return false, newRuntimeErr(pc, err)
		}
		ctx.callStack.Push(r)

	case OpAdd, OpSub, OpMul:
		return false, ctx.execArithBinary(pc, op)

	case OpDiv:
		a, b, err := ctx.popPair(pc)
		if err != nil {
			return false, err
		}
		r, err := arithDiv(b, a)
		if err != nil {
			return false, newRuntimeErr(pc, err)
		}
		ctx.callStack.Push(r)

	case OpMod:
		a, b, err := ctx.popPair(pc)
		if err != nil {
			return false, err
		}
		r, err := arithMod(b, a)
		if err != nil {
			return false, newRuntimeErr(pc, err)
		}
		ctx.callStack.Push(r)

	case OpBitTest:
		return false, ctx.execBitTest(pc)

	case OpAnd:
		a, b, err := ctx.popPair(pc)
		if err != nil {
			return false, err
		}
		ctx.callStack.Push(BoolValue(Equal(a, b) && !a.IsNil()))

	case OpOr:
		a, b, err := ctx.popPair(pc)
		if err != nil {
			return false, err
		}
		ctx.callStack.Push(BoolValue(!a.IsNil() || !b.IsNil()))

	case OpSetEq:
		a, b, err := ctx.popPair(pc)
		if err != nil {
			return false, err
		}
		ctx.callStack.Push(BoolValue(Equal(a, b)))

	case OpSetNe:
		a, b, err := ctx.popPair(pc)
		if err != nil {
			return false, err
		}
		ctx.callStack.Push(BoolValue(!Equal(a, b)))

	case OpSetGt, OpSetLe, OpSetLt, OpSetGe:
		return false, ctx.execCompare(pc, op)

	default:
		return false, newRuntimeErrf(pc, "unimplemented opcode %d at pc=%d", byte(op), pc)
	}

	return false, nil
}

func (ctx *ScriptContext) pop(pc uint32) (Value, error) {
	v, err := ctx.callStack.Pop()
	if err != nil {
		return Nil, newRuntimeErr(pc, err)
	}
	return v, nil
}

func (ctx *ScriptContext) peek(pc uint32) (Value, error) {
	v, err := ctx.callStack.Peek()
	if err != nil {
		return Nil, newRuntimeErr(pc, err)
	}
	return v, nil
}

// popPair pops the top two operands following the arithmetic convention: a
// is the first popped (top of stack), b is the second.
func (ctx *ScriptContext) popPair(pc uint32) (a, b Value, err error) {
	a, err = ctx.pop(pc)
	if err != nil {
		return Nil, Nil, err
	}
	b, err = ctx.pop(pc)
	if err != nil {
		return Nil, Nil, err
	}
	return a, b, nil
}

func (ctx *ScriptContext) execArithBinary(pc uint32, op Opcode) error {
	a, b, err := ctx.popPair(pc)
	if err != nil {
		return err
	}
	var sym byte
	switch op {
	case OpAdd:
		sym = '+'
	case OpSub:
		sym = '-'
	case OpMul:
		sym = '*'
	}
	r, err := arithBinary(sym, b, a)
	if err != nil {
		return newRuntimeErr(pc, err)
	}
	ctx.callStack.Push(r)
	return nil
}

func (ctx *ScriptContext) execBitTest(pc uint32) error {
	bit, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	val, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	if bit.Tag() != TagInt || val.Tag() != TagInt {
		return newRuntimeErr(pc, ErrTypeError)
	}
	if bit.Int() < 0 || bit.Int() >= 32 {
		return newRuntimeErr(pc, ErrTypeError)
	}
	result := (val.Int() & (1 << uint(bit.Int()))) != 0
	ctx.callStack.Push(BoolValue(result))
	return nil
}

// execCompare implements SetGt/SetLe/SetLt/SetGe. Per spec.md §4.6 these pop
// in the opposite naming order from the other binary ops: "pop b, then a".
// The first popped (top of stack, the right-hand operand by push order) is
// b; the second popped (left-hand operand) is a. The comparator is then
// evaluated as a versus b, preserving left-OP-right semantics.
func (ctx *ScriptContext) execCompare(pc uint32, op Opcode) error {
	b, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	a, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	cmp, cerr := Compare(a, b)
	if cerr != nil {
		return newRuntimeErr(pc, cerr)
	}

	var result bool
	switch op {
	case OpSetGt:
		result = cmp > 0
	case OpSetLe:
		result = cmp <= 0
	case OpSetLt:
		result = cmp < 0
	case OpSetGe:
		result = cmp >= 0
	}
	ctx.callStack.Push(BoolValue(result))
	return nil
}

func (ctx *ScriptContext) execInitStack(pc uint32, operand Operand) error {
	if ctx.callStack.Seated() {
		return newRuntimeErrf(pc, "init_stack outside of a call target")
	}
	if pc != ctx.meta.EntryPoint {
		return newRuntimeErrf(pc, "init_stack must be the first instruction executed, at entry_point=%d", ctx.meta.EntryPoint)
	}
	if err := ctx.callStack.SeatRoot(operand.U8a, operand.U8b); err != nil {
		return newRuntimeErr(pc, err)
	}
	return nil
}

func (ctx *ScriptContext) execCall(callPC uint32, operand Operand) error {
	targetAddr := operand.U32
	returnAddr := ctx.reader.Position()

	ctx.reader.SeekTo(targetAddr)
	targetOp, targetOperand, err := decodeOne(ctx.reader)
	if err != nil {
		ctx.reader.SeekTo(callPC)
		return err
	}
	if targetOp != OpInitStack {
		// spec.md §4.6 describes rewinding the PC by one byte (back over the
		// InitStack opcode byte just read at targetAddr); we rewind all the way
		// back to callPC instead, since execution terminates on this error
		// either way and callPC is the more useful position to report.
		ctx.reader.SeekTo(callPC)
		return newRuntimeErrf(callPC, "call target 0x%x does not begin with init_stack", targetAddr)
	}

	ctx.callStack.PushCall(returnAddr, targetOperand.U8a, targetOperand.U8b)
	// The reader now sits right after the callee's InitStack instruction;
	// execution simply continues from there.
	return nil
}

func (ctx *ScriptContext) execRet(pc uint32) (bool, error) {
	ctx.clearReturn()
	retAddr, terminal, err := ctx.callStack.Return()
	if err != nil {
		return false, newRuntimeErr(pc, err)
	}
	if terminal {
		return true, nil
	}
	ctx.reader.SeekTo(retAddr)
	return false, nil
}

func (ctx *ScriptContext) execRetV(pc uint32) (bool, error) {
	v, err := ctx.pop(pc)
	if err != nil {
		return false, err
	}
	ctx.setReturn(v)

	retAddr, terminal, err := ctx.callStack.Return()
	if err != nil {
		return false, newRuntimeErr(pc, err)
	}
	if terminal {
		return true, nil
	}
	ctx.reader.SeekTo(retAddr)
	return false, nil
}

func (ctx *ScriptContext) execSyscall(pc uint32, id uint16) error {
	decl, ok := ctx.meta.SyscallByOrdinal(id)
	if !ok {
		return newRuntimeErrf(pc, "%v: syscall id %d", ErrNotImplemented, id)
	}

	args := make([]Value, decl.ArgCount)
	for i := 0; i < int(decl.ArgCount); i++ {
		v, err := ctx.pop(pc)
		if err != nil {
			return err
		}
		args[int(decl.ArgCount)-1-i] = v
	}

	result, err := ctx.resolver.Invoke(decl.Name, args)
	if err != nil {
		return newRuntimeErr(pc, err)
	}
	ctx.setReturn(result)
	return nil
}

func (ctx *ScriptContext) execPushGlobal(pc uint32, id uint16) error {
	if int(id) >= len(ctx.globals) {
		return newRuntimeErrf(pc, "global index %d out of range", id)
	}
	if !ctx.globalSet[id] {
		return newRuntimeErr(pc, ErrUninitializedGlobal)
	}
	ctx.callStack.Push(ctx.globals[id])
	return nil
}

func (ctx *ScriptContext) execPopGlobal(pc uint32, id uint16) error {
	if int(id) >= len(ctx.globals) {
		return newRuntimeErrf(pc, "global index %d out of range", id)
	}
	v, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	ctx.globals[id] = v
	ctx.globalSet[id] = true
	return nil
}

func (ctx *ScriptContext) execPushLocal(pc uint32, id int32) error {
	v, err := ctx.callStack.GetLocal(id)
	if err != nil {
		return newRuntimeErr(pc, err)
	}
	ctx.callStack.Push(v)
	return nil
}

func (ctx *ScriptContext) execPopLocal(pc uint32, id int32) error {
	v, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	if err := ctx.callStack.SetLocal(id, v); err != nil {
		return newRuntimeErr(pc, err)
	}
	return nil
}

// variableRef abstracts over a global or a local slot so the table opcodes
// (which are identical in behavior between the two) share one
// implementation.
type variableRef struct {
	get func() (Value, error)
	set func(Value) error
}

func (ctx *ScriptContext) globalRef(id uint16) variableRef {
	return variableRef{
		get: func() (Value, error) {
			if int(id) >= len(ctx.globals) {
				return Nil, fmt.Errorf("global index %d out of range", id)
			}
			if !ctx.globalSet[id] {
				return Nil, nil
			}
			return ctx.globals[id], nil
		},
		set: func(v Value) error {
			if int(id) >= len(ctx.globals) {
				return fmt.Errorf("global index %d out of range", id)
			}
			ctx.globals[id] = v
			ctx.globalSet[id] = true
			return nil
		},
	}
}

func (ctx *ScriptContext) localRef(id int32) variableRef {
	return variableRef{
		get: func() (Value, error) {
			return ctx.callStack.GetLocal(id)
		},
		set: func(v Value) error {
			return ctx.callStack.SetLocal(id, v)
		},
	}
}

// execPushTable implements PushGlobalTable/PushLocalTable: pop a key, read
// the mapped value, or Nil if the variable isn't a table yet or the key is
// missing from it.
func (ctx *ScriptContext) execPushTable(pc uint32, ref variableRef) error {
	key, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	if key.Tag() != TagInt {
		return newRuntimeErr(pc, ErrTypeError)
	}

	current, err := ref.get()
	if err != nil {
		return newRuntimeErr(pc, err)
	}
	if current.Tag() != TagTable {
		ctx.callStack.Push(Nil)
		return nil
	}
	ctx.callStack.Push(current.Table().get(key.Int()))
	return nil
}

// execPopTable implements PopGlobalTable/PopLocalTable: pop value then key,
// upsert into the table, creating a fresh empty table in the variable first
// if it doesn't already hold one.
func (ctx *ScriptContext) execPopTable(pc uint32, ref variableRef) error {
	value, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	key, err := ctx.pop(pc)
	if err != nil {
		return err
	}
	if key.Tag() != TagInt {
		return newRuntimeErr(pc, ErrTypeError)
	}

	current, err := ref.get()
	if err != nil {
		return newRuntimeErr(pc, err)
	}
	if current.Tag() != TagTable {
		current = newTableValue()
		if err := ref.set(current); err != nil {
			return newRuntimeErr(pc, err)
		}
	}
	current.Table().set(key.Int(), value)
	return nil
}
