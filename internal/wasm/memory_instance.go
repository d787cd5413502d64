package wasm

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/wazerow/wazerow/api"
)

// MemoryInstance is a memory's runtime state: a growable byte buffer plus
// its declared limits. Addresses are always carried as uint64 end to end,
// even for today's 32-bit-address memories, per DESIGN.md's Open Question
// decision, so the 64-bit memory proposal (when a module declares i64
// address type) needs no separate code path.
type MemoryInstance struct {
	Buffer   []byte
	Min, Cap uint32
	Max      uint32
	Shared   bool
	PageSize uint64

	// mux guards Buffer/Cap mutation for shared memories grown from
	// multiple goroutines; unshared memories still take it since Grow is
	// rarely on a hot path.
	mux sync.Mutex
}

// NewMemoryInstance allocates a MemoryInstance sized to Min pages.
func NewMemoryInstance(m *Memory) *MemoryInstance {
	pageSize := m.PageSize
	if pageSize == 0 {
		pageSize = MemoryPageSize
	}
	size := uint64(m.Min) * pageSize
	return &MemoryInstance{
		Buffer:   make([]byte, size, size),
		Min:      m.Min,
		Cap:      m.Min,
		Max:      m.Max,
		Shared:   m.Shared,
		PageSize: pageSize,
	}
}

// Size implements api.Memory.
func (m *MemoryInstance) Size(context.Context) uint32 {
	return uint32(uint64(len(m.Buffer)) / m.PageSize)
}

// Grow implements api.Memory. It returns the previous size in pages, or
// false if the requested delta would exceed Max.
func (m *MemoryInstance) Grow(_ context.Context, deltaPages uint32) (uint32, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()

	currentPages := uint32(uint64(len(m.Buffer)) / m.PageSize)
	newPages := uint64(currentPages) + uint64(deltaPages)
	if newPages > uint64(m.Max) || newPages > uint64(MemoryLimitPages) {
		return 0, false
	}

	newBuf := make([]byte, newPages*m.PageSize)
	copy(newBuf, m.Buffer)
	m.Buffer = newBuf
	return currentPages, true
}

func (m *MemoryInstance) byteLen() uint64 { return uint64(len(m.Buffer)) }

func (m *MemoryInstance) inBounds(offset, size uint64) bool {
	end := offset + size
	return end >= offset && end <= m.byteLen()
}

// ReadByte implements api.Memory.
func (m *MemoryInstance) ReadByte(_ context.Context, offset uint32) (byte, bool) {
	o := uint64(offset)
	if !m.inBounds(o, 1) {
		return 0, false
	}
	return m.Buffer[o], true
}

// ReadUint16Le implements api.Memory.
func (m *MemoryInstance) ReadUint16Le(_ context.Context, offset uint32) (uint16, bool) {
	o := uint64(offset)
	if !m.inBounds(o, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.Buffer[o:]), true
}

// ReadUint32Le implements api.Memory.
func (m *MemoryInstance) ReadUint32Le(_ context.Context, offset uint32) (uint32, bool) {
	o := uint64(offset)
	if !m.inBounds(o, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Buffer[o:]), true
}

// ReadFloat32Le implements api.Memory.
func (m *MemoryInstance) ReadFloat32Le(ctx context.Context, offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(ctx, offset)
	return math.Float32frombits(v), ok
}

// ReadUint64Le implements api.Memory.
func (m *MemoryInstance) ReadUint64Le(_ context.Context, offset uint32) (uint64, bool) {
	o := uint64(offset)
	if !m.inBounds(o, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.Buffer[o:]), true
}

// ReadFloat64Le implements api.Memory.
func (m *MemoryInstance) ReadFloat64Le(ctx context.Context, offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(ctx, offset)
	return math.Float64frombits(v), ok
}

// Read implements api.Memory.
func (m *MemoryInstance) Read(_ context.Context, offset, byteCount uint32) ([]byte, bool) {
	o := uint64(offset)
	if !m.inBounds(o, uint64(byteCount)) {
		return nil, false
	}
	return m.Buffer[o : o+uint64(byteCount) : o+uint64(byteCount)], true
}

// WriteByte implements api.Memory.
func (m *MemoryInstance) WriteByte(_ context.Context, offset uint32, v byte) bool {
	o := uint64(offset)
	if !m.inBounds(o, 1) {
		return false
	}
	m.Buffer[o] = v
	return true
}

// WriteUint16Le implements api.Memory.
func (m *MemoryInstance) WriteUint16Le(_ context.Context, offset uint32, v uint16) bool {
	o := uint64(offset)
	if !m.inBounds(o, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.Buffer[o:], v)
	return true
}

// WriteUint32Le implements api.Memory.
func (m *MemoryInstance) WriteUint32Le(_ context.Context, offset, v uint32) bool {
	o := uint64(offset)
	if !m.inBounds(o, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.Buffer[o:], v)
	return true
}

// WriteFloat32Le implements api.Memory.
func (m *MemoryInstance) WriteFloat32Le(ctx context.Context, offset uint32, v float32) bool {
	return m.WriteUint32Le(ctx, offset, math.Float32bits(v))
}

// WriteUint64Le implements api.Memory.
func (m *MemoryInstance) WriteUint64Le(_ context.Context, offset uint32, v uint64) bool {
	o := uint64(offset)
	if !m.inBounds(o, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.Buffer[o:], v)
	return true
}

// WriteFloat64Le implements api.Memory.
func (m *MemoryInstance) WriteFloat64Le(ctx context.Context, offset uint32, v float64) bool {
	return m.WriteUint64Le(ctx, offset, math.Float64bits(v))
}

// Write implements api.Memory.
func (m *MemoryInstance) Write(_ context.Context, offset uint32, v []byte) bool {
	o := uint64(offset)
	if !m.inBounds(o, uint64(len(v))) {
		return false
	}
	copy(m.Buffer[o:], v)
	return true
}

var _ api.Memory = (*MemoryInstance)(nil)
