package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrReadbackPending is returned when pixels are requested before the
// frame that copies them has been submitted.
var ErrReadbackPending = errors.New("gpu: readback not yet complete")

// copyPitchAlignment is the BytesPerRow alignment required for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// Readback copies a 4-byte-per-texel texture into a mappable buffer and
// returns tightly packed RGBA rows once the frame has completed.
type Readback struct {
	device  hal.Device
	staging hal.Buffer
	format  gputypes.TextureFormat

	width, height uint32
	rowPitch      uint32

	pixels []byte
}

// EncodeReadback records a copy of tex into a staging buffer owned by s.
// The texture is assumed to be in render attachment usage and is returned
// to it after the copy. Call Read from the Submit callback.
func EncodeReadback(s *FrameSession, tex hal.Texture, format gputypes.TextureFormat, width, height uint32) (*Readback, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("readback %dx%d: %w", width, height, ErrInvalidBufferSize)
	}
	rowPitch := uint32(AlignUp(uint64(width)*4, copyPitchAlignment))
	size := uint64(rowPitch) * uint64(height)
	staging, err := s.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	enc := s.Encoder()
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	enc.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{BytesPerRow: rowPitch, RowsPerImage: height},
		TextureBase:  hal.ImageCopyTexture{Texture: tex},
		Size:         hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	return &Readback{
		device:   s.Device(),
		staging:  staging,
		format:   format,
		width:    width,
		height:   height,
		rowPitch: rowPitch,
	}, nil
}

// Read maps the staging buffer and copies out the pixels. The GPU must be
// idle.
func (r *Readback) Read() error {
	size := uint64(r.rowPitch) * uint64(r.height)
	mapping, err := r.device.MapBuffer(r.staging, 0, size)
	if err != nil {
		return fmt.Errorf("map readback buffer: %w", err)
	}
	defer func() { _ = r.device.UnmapBuffer(r.staging) }()

	src := unsafe.Slice((*byte)(mapping.Ptr), size)
	tight := uint32(r.width * 4)
	out := make([]byte, uint64(tight)*uint64(r.height))
	for row := uint32(0); row < r.height; row++ {
		copy(out[row*tight:(row+1)*tight], src[row*r.rowPitch:row*r.rowPitch+tight])
	}
	if r.format == gputypes.TextureFormatBGRA8Unorm || r.format == gputypes.TextureFormatBGRA8UnormSrgb {
		swapRedBlue(out)
	}
	r.pixels = out
	return nil
}

// Pixels returns the RGBA rows read by Read.
func (r *Readback) Pixels() ([]byte, error) {
	if r.pixels == nil {
		return nil, ErrReadbackPending
	}
	return r.pixels, nil
}

// Size returns the copied extent.
func (r *Readback) Size() (width, height uint32) { return r.width, r.height }

func swapRedBlue(px []byte) {
	for i := 0; i+3 < len(px); i += 4 {
		px[i], px[i+2] = px[i+2], px[i]
	}
}
