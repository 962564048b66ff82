package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrInvalidBufferSize is returned when a buffer would be empty.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrNilDevice is returned when a helper is called without a device or queue.
	ErrNilDevice = errors.New("gpu: device or queue is nil")
)

// copyAlignment is the required size granularity of buffer writes.
const copyAlignment = 4

// AlignUp rounds n up to a multiple of align. align must be a power of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// CreateBufferWithData creates a buffer sized for data (rounded up to the
// copy alignment) and uploads data through the queue.
func CreateBufferWithData(device hal.Device, queue hal.Queue, label string, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("create %s: %w", label, ErrInvalidBufferSize)
	}
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  AlignUp(uint64(len(data)), copyAlignment),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	if err := queue.WriteBuffer(buf, 0, data); err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("upload %s: %w", label, err)
	}
	return buf, nil
}

// Float32Bytes encodes values as little-endian IEEE 754.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// BytesFloat32 decodes little-endian IEEE 754 values. Trailing bytes that
// do not form a whole value are ignored.
func BytesFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
