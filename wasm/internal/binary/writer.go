package binary

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// OverrunError is the panic value raised when a write does not fit the
// precomputed buffer. It signals a size/encode disagreement, not bad input.
type OverrunError struct {
	Offset int
	Need   int
	Cap    int
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("binary: write of %d bytes at offset %d overruns buffer of %d", e.Need, e.Offset, e.Cap)
}

// Writer emits WASM binary encoding into a buffer allocated once up front.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter creates a Writer over a buffer of exactly size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, size)}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.pos
}

// Cap returns the size of the underlying buffer.
func (w *Writer) Cap() int {
	return len(w.buf)
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.reserve(1)
	w.buf[w.pos] = b
	w.pos++
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.reserve(len(data))
	w.pos += copy(w.buf[w.pos:], data)
}

// WriteU32 writes an unsigned LEB128 encoded uint32.
func (w *Writer) WriteU32(v uint32) {
	w.pos = PutUvarint(w.buf, w.pos, uint64(v))
}

// WriteU64 writes an unsigned LEB128 encoded uint64.
func (w *Writer) WriteU64(v uint64) {
	w.pos = PutUvarint(w.buf, w.pos, v)
}

// WriteS32 writes a signed LEB128 encoded int32.
func (w *Writer) WriteS32(v int32) {
	w.pos = PutSvarint(w.buf, w.pos, int64(v))
}

// WriteS64 writes a signed LEB128 encoded int64.
func (w *Writer) WriteS64(v int64) {
	w.pos = PutSvarint(w.buf, w.pos, v)
}

// WriteName writes a UTF-8 encoded name (length-prefixed).
func (w *Writer) WriteName(s string) {
	w.WriteU32(uint32(len(s)))
	w.reserve(len(s))
	w.pos += copy(w.buf[w.pos:], s)
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	w.reserve(4)
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
}

// WriteU64LE writes a little-endian uint64 (fixed 8 bytes).
func (w *Writer) WriteU64LE(v uint64) {
	w.reserve(8)
	binary.LittleEndian.PutUint64(w.buf[w.pos:], v)
	w.pos += 8
}

func (w *Writer) reserve(n int) {
	if w.pos+n > len(w.buf) {
		panic(&OverrunError{Offset: w.pos, Need: n, Cap: len(w.buf)})
	}
}

// SizeUvarint returns the number of bytes PutUvarint writes for v.
func SizeUvarint(v uint64) int {
	if v == 0 {
		return 1
	}
	return (bits.Len64(v) + 6) / 7
}

// SizeSvarint returns the number of bytes PutSvarint writes for v.
func SizeSvarint(v int64) int {
	u := uint64(v)
	if v < 0 {
		u = ^u
	}
	return (bits.Len64(u) + 1 + 6) / 7
}

// PutUvarint writes v as unsigned LEB128 at buf[off:] and returns the
// offset past the last byte written.
func PutUvarint(buf []byte, off int, v uint64) int {
	n := SizeUvarint(v)
	if off < 0 || off+n > len(buf) {
		panic(&OverrunError{Offset: off, Need: n, Cap: len(buf)})
	}
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf[off] = b
		off++
		if v == 0 {
			return off
		}
	}
}

// PutSvarint writes v as signed LEB128 at buf[off:] and returns the
// offset past the last byte written.
func PutSvarint(buf []byte, off int, v int64) int {
	n := SizeSvarint(v)
	if off < 0 || off+n > len(buf) {
		panic(&OverrunError{Offset: off, Need: n, Cap: len(buf)})
	}
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			buf[off] = b
			return off + 1
		}
		buf[off] = b | 0x80
		off++
	}
}
