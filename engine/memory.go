package engine

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasmcodec "github.com/wippyai/wasm-codec"
)

var _ wasmcodec.SizedMemory = (*WazeroMemory)(nil)

// WazeroMemory wraps an instance's linear memory with bounds-checked access.
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read u32 out of bounds: offset=%d", offset)
	}
	return v, nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return fmt.Errorf("write u32 out of bounds: offset=%d", offset)
	}
	return nil
}

// Size returns the memory size in bytes.
func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}
