package wasmcodec

// Memory is bounds-checked access to an instance's linear memory.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// SizedMemory is a Memory that also reports its size.
type SizedMemory interface {
	Memory
	MemorySizer
}
