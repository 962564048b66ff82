package gg3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gg3d/internal/gpu"
)

// encodeUniform converts value to the uniform buffer layout of slot.
//
// Supported values are mgl32 matrices and vectors, float32, []float32 and
// raw []byte. A Mat3 is written as three 16-byte columns.
func encodeUniform(slot UniformSlot, value any) ([]byte, error) {
	var data []byte
	switch v := value.(type) {
	case mgl32.Mat4:
		data = gpu.Float32Bytes(v[:])
	case mgl32.Mat3:
		data = gpu.Float32Bytes([]float32{
			v[0], v[1], v[2], 0,
			v[3], v[4], v[5], 0,
			v[6], v[7], v[8], 0,
		})
	case mgl32.Vec4:
		data = gpu.Float32Bytes(v[:])
	case mgl32.Vec3:
		data = gpu.Float32Bytes(v[:])
	case mgl32.Vec2:
		data = gpu.Float32Bytes(v[:])
	case float32:
		data = gpu.Float32Bytes([]float32{v})
	case []float32:
		data = gpu.Float32Bytes(v)
	case []byte:
		data = v
	default:
		return nil, fmt.Errorf("uniform %q: unsupported value type %T", slot.Name, value)
	}
	if uint32(len(data)) != slot.Size {
		return nil, fmt.Errorf("uniform %q: %d bytes, want %d", slot.Name, len(data), slot.Size)
	}
	return data, nil
}

// NormalMatrix returns the inverse transpose of the upper 3x3 of world.
func NormalMatrix(world mgl32.Mat4) mgl32.Mat3 {
	return world.Mat3().Inv().Transpose()
}
