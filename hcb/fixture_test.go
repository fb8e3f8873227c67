package hcb

import (
	"encoding/binary"
	"math"
)

// asmBuilder assembles a raw HCB code blob by hand, opcode byte and operand
// bytes at a time, using the exact same layout decodeOne expects. Addresses
// recorded via pc() are absolute offsets into the final image (the code
// region always starts at byte 4, right after the metadata_offset header).
type asmBuilder struct {
	buf []byte
}

func newAsm() *asmBuilder { return &asmBuilder{} }

func (b *asmBuilder) pc() uint32 { return uint32(len(b.buf)) + 4 }

func (b *asmBuilder) u8(v uint8)   { b.buf = append(b.buf, v) }
func (b *asmBuilder) i8(v int8)    { b.u8(uint8(v)) }
func (b *asmBuilder) u16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *asmBuilder) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}
func (b *asmBuilder) i32(v int32)   { b.u32(uint32(v)) }
func (b *asmBuilder) f32(v float32) { b.u32(math.Float32bits(v)) }

// str writes a length-prefixed, UTF-8-encoded string, matching
// Reader.ReadString's on-disk shape.
func (b *asmBuilder) str(s string) {
	if s == "" {
		b.u8(1)
		b.u8(0)
		return
	}
	payload := []byte(s)
	b.u8(uint8(len(payload) + 1))
	b.buf = append(b.buf, payload...)
	b.u8(0)
}

func (b *asmBuilder) op(o Opcode) { b.u8(byte(o)) }

func (b *asmBuilder) initStack(args, locals uint8) { b.op(OpInitStack); b.u8(args); b.u8(locals) }
func (b *asmBuilder) call(addr uint32)             { b.op(OpCall); b.u32(addr) }
func (b *asmBuilder) jmp(addr uint32)              { b.op(OpJmp); b.u32(addr) }
func (b *asmBuilder) jz(addr uint32)               { b.op(OpJz); b.u32(addr) }
func (b *asmBuilder) syscall(id uint16)            { b.op(OpSyscall); b.u16(id) }
func (b *asmBuilder) pushI32(v int32)              { b.op(OpPushI32); b.i32(v) }
func (b *asmBuilder) pushF32(v float32)            { b.op(OpPushF32); b.f32(v) }
func (b *asmBuilder) pushString(s string)          { b.op(OpPushString); b.str(s) }
func (b *asmBuilder) pushGlobal(id uint16)         { b.op(OpPushGlobal); b.u16(id) }
func (b *asmBuilder) popGlobal(id uint16)          { b.op(OpPopGlobal); b.u16(id) }
func (b *asmBuilder) pushLocal(id int8)            { b.op(OpPushLocal); b.i8(id) }
func (b *asmBuilder) popLocal(id int8)             { b.op(OpPopLocal); b.i8(id) }
func (b *asmBuilder) pushGlobalTable(id uint16)    { b.op(OpPushGlobalTable); b.u16(id) }
func (b *asmBuilder) popGlobalTable(id uint16)     { b.op(OpPopGlobalTable); b.u16(id) }
func (b *asmBuilder) pushLocalTable(id int8)       { b.op(OpPushLocalTable); b.i8(id) }
func (b *asmBuilder) popLocalTable(id int8)        { b.op(OpPopLocalTable); b.i8(id) }

func (b *asmBuilder) nop()        { b.op(OpNop) }
func (b *asmBuilder) ret()        { b.op(OpRet) }
func (b *asmBuilder) retv()       { b.op(OpRetV) }
func (b *asmBuilder) pushNil()    { b.op(OpPushNil) }
func (b *asmBuilder) pushTrue()   { b.op(OpPushTrue) }
func (b *asmBuilder) pushTop()    { b.op(OpPushTop) }
func (b *asmBuilder) pushReturn() { b.op(OpPushReturn) }
func (b *asmBuilder) neg()        { b.op(OpNeg) }
func (b *asmBuilder) add()        { b.op(OpAdd) }
func (b *asmBuilder) sub()        { b.op(OpSub) }
func (b *asmBuilder) mul()        { b.op(OpMul) }
func (b *asmBuilder) div()        { b.op(OpDiv) }
func (b *asmBuilder) mod()        { b.op(OpMod) }
func (b *asmBuilder) bitTest()    { b.op(OpBitTest) }
func (b *asmBuilder) and()        { b.op(OpAnd) }
func (b *asmBuilder) or()         { b.op(OpOr) }
func (b *asmBuilder) setEq()      { b.op(OpSetEq) }
func (b *asmBuilder) setNe()      { b.op(OpSetNe) }
func (b *asmBuilder) setGt()      { b.op(OpSetGt) }
func (b *asmBuilder) setLe()      { b.op(OpSetLe) }
func (b *asmBuilder) setLt()      { b.op(OpSetLt) }
func (b *asmBuilder) setGe()      { b.op(OpSetGe) }

// image bundles an assembled code blob with the metadata needed to build a
// full byte image and a Reader over it.
type image struct {
	code        []byte
	entryPoint  uint32
	globalCount uint16
	syscalls    []SyscallDecl
}

// bytes assembles the full HCB byte image: the 4-byte metadata_offset
// header, the code region, then the metadata block.
func (img image) bytes() []byte {
	var meta asmBuilder
	meta.u32(img.entryPoint)
	meta.u16(img.globalCount)
	meta.u16(0) // volatile_global_count
	meta.u16(0) // resolution_mode
	meta.str("fixture")
	meta.u8(uint8(len(img.syscalls)))
	for _, s := range img.syscalls {
		meta.u8(s.ArgCount)
		meta.str(s.Name)
	}

	var header asmBuilder
	metadataOffset := uint32(4 + len(img.code))
	header.u32(metadataOffset)

	out := append([]byte{}, header.buf...)
	out = append(out, img.code...)
	out = append(out, meta.buf...)
	return out
}

func (img image) reader() *Reader { return NewByteReader(img.bytes(), EncodingUTF8) }

// newContext builds a Reader, parses its metadata, and wires up a
// ScriptContext with resolver, ready to Execute.
func newContext(img image, resolver *SyscallResolver) (*ScriptContext, error) {
	r := img.reader()
	m, err := ParseMetadata(r)
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = NewSyscallResolver()
	}
	return NewScriptContext(r, m, resolver), nil
}
