package godray

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jamesdimick/godray-go/common"
)

// paramsSlotSize is the byte stride between per-dispatch parameter slots.
// Matches the minimum uniform buffer offset alignment required by WebGPU,
// so every slot can be bound at its own dynamic-free offset.
const paramsSlotSize = 256

// initialParamsSlots sizes the arena for a handful of stereo frames worth of
// dispatches; the arena grows if a frame ever needs more.
const initialParamsSlots = 64

// paramsArena is a per-frame bump allocator over a single uniform buffer.
// Each compute dispatch gets its own 256-byte slot holding that dispatch's
// parameter floats; slots are bound via explicit byte offsets in the bind
// group entry. Reset rewinds the arena at the start of each frame. The
// writes land on the queue before the frame's command buffer is submitted,
// so every dispatch reads the values staged for it.
type paramsArena struct {
	buffer  *wgpu.Buffer
	slots   int
	next    int
	destroy func(*wgpu.Buffer)
}

// bufferSource is the subset of the renderer the arena needs.
type bufferSource interface {
	CreateUniformBuffer(label string, size uint64) (*wgpu.Buffer, error)
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)
}

func newParamsArena(r bufferSource, slots int, destroy func(*wgpu.Buffer)) (*paramsArena, error) {
	buf, err := r.CreateUniformBuffer("godray params", uint64(slots)*paramsSlotSize)
	if err != nil {
		return nil, err
	}
	return &paramsArena{buffer: buf, slots: slots, destroy: destroy}, nil
}

// reset rewinds the arena for a new frame.
func (a *paramsArena) reset() {
	a.next = 0
}

// push writes the given floats into the next free slot and returns the slot's
// byte offset. When the arena is full it is replaced with one twice the size;
// the old buffer is released once the GPU finishes the frames referencing it.
func (a *paramsArena) push(r bufferSource, values []float32) (uint64, error) {
	if a.next >= a.slots {
		grown, err := r.CreateUniformBuffer("godray params", uint64(a.slots*2)*paramsSlotSize)
		if err != nil {
			return 0, err
		}
		a.destroy(a.buffer)
		a.buffer = grown
		a.slots *= 2
		a.next = 0
	}

	offset := uint64(a.next) * paramsSlotSize
	r.WriteBuffer(a.buffer, offset, common.SliceToBytes(values))
	a.next++
	return offset, nil
}

// release frees the arena's buffer. Safe on a nil arena.
func (a *paramsArena) release() {
	if a == nil || a.buffer == nil {
		return
	}
	a.destroy(a.buffer)
	a.buffer = nil
}
