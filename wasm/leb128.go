package wasm

import (
	"github.com/wippyai/wasm-codec/wasm/internal/binary"
)

// LEB128 helpers over caller-owned buffers. Put* panic when buf is too
// short; Read* return decode-phase errors for truncated or overlong input.

// PutU32 writes v as unsigned LEB128 at buf[off:] and returns the next offset.
func PutU32(buf []byte, off int, v uint32) int {
	return binary.PutUvarint(buf, off, uint64(v))
}

// PutU64 writes v as unsigned LEB128 at buf[off:] and returns the next offset.
func PutU64(buf []byte, off int, v uint64) int {
	return binary.PutUvarint(buf, off, v)
}

// PutS32 writes v as signed LEB128 at buf[off:] and returns the next offset.
func PutS32(buf []byte, off int, v int32) int {
	return binary.PutSvarint(buf, off, int64(v))
}

// PutS33 writes a 33-bit signed value, as used by block types.
func PutS33(buf []byte, off int, v int64) int {
	return binary.PutSvarint(buf, off, v)
}

// PutS64 writes v as signed LEB128 at buf[off:] and returns the next offset.
func PutS64(buf []byte, off int, v int64) int {
	return binary.PutSvarint(buf, off, v)
}

// ReadU32 decodes an unsigned LEB128 uint32 at buf[off:].
func ReadU32(buf []byte, off int) (uint32, int, error) {
	r := binary.NewReaderAt(buf, off)
	v, err := r.ReadU32()
	return v, r.Position(), err
}

// ReadU64 decodes an unsigned LEB128 uint64 at buf[off:].
func ReadU64(buf []byte, off int) (uint64, int, error) {
	r := binary.NewReaderAt(buf, off)
	v, err := r.ReadU64()
	return v, r.Position(), err
}

// ReadS32 decodes a signed LEB128 int32 at buf[off:].
func ReadS32(buf []byte, off int) (int32, int, error) {
	r := binary.NewReaderAt(buf, off)
	v, err := r.ReadS32()
	return v, r.Position(), err
}

// ReadS33 decodes a signed 33-bit LEB128 value at buf[off:].
func ReadS33(buf []byte, off int) (int64, int, error) {
	r := binary.NewReaderAt(buf, off)
	v, err := r.ReadS33()
	return v, r.Position(), err
}

// ReadS64 decodes a signed LEB128 int64 at buf[off:].
func ReadS64(buf []byte, off int) (int64, int, error) {
	r := binary.NewReaderAt(buf, off)
	v, err := r.ReadS64()
	return v, r.Position(), err
}

// SizeU32 returns the encoded width of v.
func SizeU32(v uint32) int { return binary.SizeUvarint(uint64(v)) }

// SizeU64 returns the encoded width of v.
func SizeU64(v uint64) int { return binary.SizeUvarint(v) }

// SizeS32 returns the encoded width of v.
func SizeS32(v int32) int { return binary.SizeSvarint(int64(v)) }

// SizeS33 returns the encoded width of v.
func SizeS33(v int64) int { return binary.SizeSvarint(v) }

// SizeS64 returns the encoded width of v.
func SizeS64(v int64) int { return binary.SizeSvarint(v) }

// AppendU32 appends v as unsigned LEB128.
func AppendU32(dst []byte, v uint32) []byte {
	return appendVarint(dst, SizeU32(v), func(b []byte, off int) int { return PutU32(b, off, v) })
}

// AppendU64 appends v as unsigned LEB128.
func AppendU64(dst []byte, v uint64) []byte {
	return appendVarint(dst, SizeU64(v), func(b []byte, off int) int { return PutU64(b, off, v) })
}

// AppendS32 appends v as signed LEB128.
func AppendS32(dst []byte, v int32) []byte {
	return appendVarint(dst, SizeS32(v), func(b []byte, off int) int { return PutS32(b, off, v) })
}

// AppendS64 appends v as signed LEB128.
func AppendS64(dst []byte, v int64) []byte {
	return appendVarint(dst, SizeS64(v), func(b []byte, off int) int { return PutS64(b, off, v) })
}

func appendVarint(dst []byte, n int, put func([]byte, int) int) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, n)...)
	put(dst, off)
	return dst
}
