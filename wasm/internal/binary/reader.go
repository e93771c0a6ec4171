package binary

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/wippyai/wasm-codec/errors"
)

// Reader is a cursor over an in-memory WASM byte slice.
// Every read is bounds-checked and fails with a decode-phase *errors.Error
// carrying the offset and the current section name.
type Reader struct {
	data    []byte
	pos     int
	section string
}

// NewReader creates a new Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// NewReaderAt creates a Reader over data positioned at off. Offsets in
// errors stay relative to the start of data.
func NewReaderAt(data []byte, off int) *Reader {
	return &Reader{data: data, pos: max(0, min(off, len(data)))}
}

// Position returns the current byte offset.
func (r *Reader) Position() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.data) - r.pos
}

// Section returns the section name attached to errors.
func (r *Reader) Section() string {
	return r.section
}

// SetSection sets the section name attached to errors.
func (r *Reader) SetSection(name string) {
	r.section = name
}

// ReadByte reads a single byte and advances the position.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.truncated(1)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes into a fresh slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, r.truncated(n)
	}
	buf := make([]byte, n)
	copy(buf, r.data[r.pos:r.pos+n])
	r.pos += n
	return buf, nil
}

// Skip advances past n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || n > r.Len() {
		return r.truncated(n)
	}
	r.pos += n
	return nil
}

// ReadU32 reads an unsigned LEB128 encoded uint32.
func (r *Reader) ReadU32() (uint32, error) {
	v, err := r.readUnsigned(32, "u32")
	return uint32(v), err
}

// ReadU64 reads an unsigned LEB128 encoded uint64.
func (r *Reader) ReadU64() (uint64, error) {
	return r.readUnsigned(64, "u64")
}

// ReadS32 reads a signed LEB128 encoded int32.
func (r *Reader) ReadS32() (int32, error) {
	v, err := r.readSigned(32, "s32")
	return int32(v), err
}

// ReadS33 reads a signed 33-bit LEB128 value, as used by block types.
func (r *Reader) ReadS33() (int64, error) {
	return r.readSigned(33, "s33")
}

// ReadS64 reads a signed LEB128 encoded int64.
func (r *Reader) ReadS64() (int64, error) {
	return r.readSigned(64, "s64")
}

// ReadName reads a UTF-8 encoded name (length-prefixed byte sequence).
func (r *Reader) ReadName() (string, error) {
	length, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	start := r.pos
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", r.annotate(errors.InvalidUTF8(start, data))
	}
	return string(data), nil
}

// ReadU32LE reads a little-endian uint32 (fixed 4 bytes).
func (r *Reader) ReadU32LE() (uint32, error) {
	if r.Len() < 4 {
		return 0, r.truncated(4)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadU64LE reads a little-endian uint64 (fixed 8 bytes).
func (r *Reader) ReadU64LE() (uint64, error) {
	if r.Len() < 8 {
		return 0, r.truncated(8)
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// readUnsigned decodes at most ceil(bits/7) bytes. The unused high bits of
// the final permitted byte must be zero.
func (r *Reader) readUnsigned(bits uint, name string) (uint64, error) {
	start := r.pos
	var result uint64
	var shift uint
	for {
		if r.pos >= len(r.data) {
			return 0, r.truncated(1)
		}
		b := r.data[r.pos]
		r.pos++
		p := uint64(b & 0x7f)
		if shift+7 >= bits {
			used := bits - shift
			if b&0x80 != 0 || p>>used != 0 {
				return 0, r.annotate(errors.Overflow(start, name))
			}
			return result | p<<shift, nil
		}
		result |= p << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// readSigned decodes at most ceil(bits/7) bytes. The unused high bits of
// the final permitted byte must sign-extend the value.
func (r *Reader) readSigned(bits uint, name string) (int64, error) {
	start := r.pos
	var result uint64
	var shift uint
	var b byte
	for {
		if r.pos >= len(r.data) {
			return 0, r.truncated(1)
		}
		b = r.data[r.pos]
		r.pos++
		p := uint64(b & 0x7f)
		if shift+7 >= bits {
			used := bits - shift
			hi := p >> (used - 1)
			if b&0x80 != 0 || (hi != 0 && hi != 0x7f>>(used-1)) {
				return 0, r.annotate(errors.Overflow(start, name))
			}
		}
		result |= p << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= ^uint64(0) << shift
	}
	return int64(result), nil
}

func (r *Reader) truncated(want int) error {
	return r.annotate(errors.Truncated(r.pos, want, r.Len()))
}

func (r *Reader) annotate(err *errors.Error) error {
	if err.Section == "" {
		err.Section = r.section
	}
	return err
}
