package gg3d

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/image/draw"
)

// SamplerConfig selects wrap and filter modes of a texture sampler.
type SamplerConfig struct {
	AddressMode  gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
}

// DefaultSamplerConfig repeats, magnifies linearly and picks the nearest
// texel of the nearest mip level when minifying.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		AddressMode:  gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	}
}

// Placeholder is the color of texture levels that have not been loaded.
var Placeholder = color.RGBA{R: 0, G: 0, B: 255, A: 255}

// Texture is a sampled RGBA8 texture with a mip chain.
type Texture struct {
	ctx   *Context
	label string

	tex     hal.Texture
	view    hal.TextureView
	sampler hal.Sampler
	config  SamplerConfig

	width, height uint32
	levels        uint32
}

// NewTexture allocates a width x height texture with levels mip levels,
// every level filled with Placeholder. A levels value of zero allocates
// the full chain down to 1x1.
func NewTexture(ctx *Context, label string, width, height, levels uint32, cfg SamplerConfig) (*Texture, error) {
	t := &Texture{ctx: ctx, label: label}
	if err := t.SetSampler(cfg); err != nil {
		return nil, err
	}
	if err := t.Allocate(width, height, levels); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// MipLevelCount returns the length of the full mip chain of a
// width x height texture.
func MipLevelCount(width, height uint32) uint32 {
	n := uint32(1)
	for s := max(width, height); s > 1; s >>= 1 {
		n++
	}
	return n
}

// Allocate replaces the texture storage. Every level is filled with
// Placeholder. The sampler is kept.
func (t *Texture) Allocate(width, height, levels uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("texture %s: zero size %dx%d", t.label, width, height)
	}
	if limit := t.ctx.limits.MaxTextureDimension2D; limit > 0 && (width > limit || height > limit) {
		return fmt.Errorf("texture %s: %dx%d exceeds device limit %d", t.label, width, height, limit)
	}
	if full := MipLevelCount(width, height); levels == 0 || levels > full {
		levels = full
	}

	device := t.ctx.device
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         t.label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: levels,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create texture %s: %w", t.label, err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         t.label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: levels,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return fmt.Errorf("create texture view %s: %w", t.label, err)
	}

	t.destroyStorage()
	t.tex, t.view = tex, view
	t.width, t.height, t.levels = width, height, levels
	for level := uint32(0); level < levels; level++ {
		if err := t.Fill(level, Placeholder); err != nil {
			return err
		}
	}
	return nil
}

// LevelSize returns the dimensions of a mip level.
func (t *Texture) LevelSize(level uint32) (width, height uint32) {
	return max(t.width>>level, 1), max(t.height>>level, 1)
}

// Fill sets every texel of a level to c.
func (t *Texture) Fill(level uint32, c color.RGBA) error {
	w, h := t.LevelSize(level)
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return t.write(level, img)
}

// WriteLevel uploads img into a mip level. Images of another size are
// resampled to the level size.
func (t *Texture) WriteLevel(level uint32, img image.Image) error {
	if level >= t.levels {
		return fmt.Errorf("texture %s: level %d out of range (%d levels)", t.label, level, t.levels)
	}
	w, h := t.LevelSize(level)
	dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	if img.Bounds().Dx() == int(w) && img.Bounds().Dy() == int(h) {
		draw.Copy(dst, image.Point{}, img, img.Bounds(), draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	}
	return t.write(level, dst)
}

func (t *Texture) write(level uint32, img *image.RGBA) error {
	w, h := t.LevelSize(level)
	err := t.ctx.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: level, Aspect: gputypes.TextureAspectAll},
		img.Pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(img.Stride), RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write texture %s level %d: %w", t.label, level, err)
	}
	return nil
}

// SetSampler replaces the sampler.
func (t *Texture) SetSampler(cfg SamplerConfig) error {
	s, err := t.ctx.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        t.label + "_sampler",
		AddressModeU: cfg.AddressMode,
		AddressModeV: cfg.AddressMode,
		AddressModeW: cfg.AddressMode,
		MagFilter:    cfg.MagFilter,
		MinFilter:    cfg.MinFilter,
		MipmapFilter: cfg.MipmapFilter,
		LodMaxClamp:  32,
	})
	if err != nil {
		return fmt.Errorf("create sampler %s: %w", t.label, err)
	}
	if t.sampler != nil {
		t.ctx.device.DestroySampler(t.sampler)
	}
	t.sampler, t.config = s, cfg
	return nil
}

// View returns the view over all mip levels.
func (t *Texture) View() hal.TextureView { return t.view }

// Sampler returns the sampler.
func (t *Texture) Sampler() hal.Sampler { return t.sampler }

// SamplerConfig returns the active sampler configuration.
func (t *Texture) SamplerConfig() SamplerConfig { return t.config }

// Size returns the dimensions of level 0.
func (t *Texture) Size() (width, height uint32) { return t.width, t.height }

// MipLevels returns the number of mip levels.
func (t *Texture) MipLevels() uint32 { return t.levels }

func (t *Texture) destroyStorage() {
	if t.view != nil {
		t.ctx.device.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.tex != nil {
		t.ctx.device.DestroyTexture(t.tex)
		t.tex = nil
	}
}

// Destroy releases the texture, its view and its sampler.
func (t *Texture) Destroy() {
	t.destroyStorage()
	if t.sampler != nil {
		t.ctx.device.DestroySampler(t.sampler)
		t.sampler = nil
	}
}
