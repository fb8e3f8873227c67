package hcb

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

// TextEncoding names the codecs selectable for Reader.ReadString. The
// concrete decompiled scripts this format comes from are historically
// Shift-JIS; UTF-8 and an 8-bit Latin-1 code page are offered for scripts
// that were re-encoded by modern tooling.
type TextEncoding int

const (
	EncodingShiftJIS TextEncoding = iota
	EncodingUTF8
	EncodingLatin1
)

func (e TextEncoding) codec() encoding.Encoding {
	switch e {
	case EncodingUTF8:
		return unicode.UTF8
	case EncodingLatin1:
		return charmap.ISO8859_1
	default:
		return japanese.ShiftJIS
	}
}

// Reader is a positioned binary cursor over a random-access byte source,
// anchored at the source's initial position so that nested structures (the
// metadata block, a table of syscalls) can share one cursor without the
// caller juggling absolute offsets.
type Reader struct {
	src    io.ReaderAt
	anchor int64
	pos    int64
	codec  encoding.Encoding
}

// NewReader wraps src (an in-memory byte slice, a memory-mapped file, or any
// other io.ReaderAt) anchored at its current logical position 0.
func NewReader(src io.ReaderAt, enc TextEncoding) *Reader {
	return &Reader{src: src, codec: enc.codec()}
}

// NewByteReader is a convenience constructor over an in-memory image.
func NewByteReader(data []byte, enc TextEncoding) *Reader {
	return NewReader(byteReaderAt(data), enc)
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Position returns the current logical position relative to the anchor.
func (r *Reader) Position() uint32 { return uint32(r.pos - r.anchor) }

// Advance moves the cursor forward by n bytes relative to its current
// position.
func (r *Reader) Advance(n uint32) { r.pos += int64(n) }

// SeekTo moves the cursor to an absolute position relative to the anchor.
func (r *Reader) SeekTo(pos uint32) { r.pos = r.anchor + int64(pos) }

func (r *Reader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := r.src.ReadAt(buf, r.pos)
	if read < n {
		if err == io.EOF || err == nil {
			return nil, ErrEndOfStream
		}
		return nil, fmt.Errorf("%w: %v", ErrEndOfStream, err)
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadU8 reads an unsigned 8-bit integer.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.readFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI8 reads a signed 8-bit integer.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadU16 reads a little-endian unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.readFull(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadI16 reads a little-endian signed 16-bit integer.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 reads a little-endian unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadI32 reads a little-endian signed 32-bit integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadF32 reads a little-endian IEEE-754 32-bit float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadString reads a one-byte length-prefixed string. L == 0 is invalid;
// L == 1 is the empty string; L > 1 reads L-1 payload bytes followed by one
// terminator byte that is consumed but not returned, decoding the payload
// with the Reader's configured text encoding.
func (r *Reader) ReadString() (string, error) {
	length, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", ErrInvalidData
	}
	if length == 1 {
		if _, err := r.readFull(1); err != nil {
			return "", err
		}
		return "", nil
	}

	payload, err := r.readFull(int(length) - 1)
	if err != nil {
		return "", err
	}
	if _, err := r.readFull(1); err != nil {
		return "", err
	}

	decoded, err := r.codec.NewDecoder().Bytes(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return string(decoded), nil
}
