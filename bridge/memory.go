package bridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
)

// guestMemory wraps the guest's exported memory
type guestMemory struct {
	mem api.Memory
}

func (m *guestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, nil, offset, length)
	}
	return data, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, uint32(len(data)))
	}
	return nil
}

func (m *guestMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, nil, offset, 4)
	}
	return val, nil
}

func (m *guestMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, nil, offset, 4)
	}
	return nil
}

func (m *guestMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// guestAllocator calls the guest's cabi_realloc
type guestAllocator struct {
	fn  api.Function
	ctx context.Context
	// pre-allocated for CallWithStack
	stack [4]uint64
}

func (a *guestAllocator) setContext(ctx context.Context) {
	a.ctx = ctx
}

func (a *guestAllocator) Alloc(size, align uint32) (uint32, error) {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	a.stack[0] = 0
	a.stack[1] = 0
	a.stack[2] = uint64(align)
	a.stack[3] = uint64(size)
	if err := a.fn.CallWithStack(ctx, a.stack[:]); err != nil {
		return 0, errors.AllocationFailed(size, align, err)
	}
	return api.DecodeU32(a.stack[0]), nil
}

var (
	_ wasmbridge.Memory      = (*guestMemory)(nil)
	_ wasmbridge.MemorySizer = (*guestMemory)(nil)
	_ wasmbridge.Allocator   = (*guestAllocator)(nil)
)
