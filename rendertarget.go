package gg3d

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Surface is a frame's default destination: the passes without a Target
// draw into it. RenderTarget implements Surface for offscreen rendering.
type Surface interface {
	ColorView() hal.TextureView
	// DepthView returns nil when the surface has no depth attachment.
	DepthView() hal.TextureView
	ColorFormat() gputypes.TextureFormat
	DepthFormat() gputypes.TextureFormat
	Size() (width, height uint32)
}

// ExternalSurface adapts views owned by someone else, such as a swapchain
// image acquired by a windowing layer, to Surface.
type ExternalSurface struct {
	Color    hal.TextureView
	Depth    hal.TextureView
	Format   gputypes.TextureFormat
	DepthFmt gputypes.TextureFormat
	Width    uint32
	Height   uint32
}

// ColorView returns the caller's color attachment view.
func (s *ExternalSurface) ColorView() hal.TextureView { return s.Color }

// DepthView returns the caller's depth view, or nil when the surface has
// no depth attachment.
func (s *ExternalSurface) DepthView() hal.TextureView { return s.Depth }

// ColorFormat returns the format pipelines drawing into the surface use.
func (s *ExternalSurface) ColorFormat() gputypes.TextureFormat { return s.Format }

// Size returns the attachment size in pixels.
func (s *ExternalSurface) Size() (uint32, uint32) { return s.Width, s.Height }

// DepthFormat returns DepthFmt, or TextureFormatUndefined when Depth is nil
// so pipelines are built without a depth-stencil state.
func (s *ExternalSurface) DepthFormat() gputypes.TextureFormat {
	if s.Depth == nil {
		return gputypes.TextureFormatUndefined
	}
	return s.DepthFmt
}

// RenderTarget is an offscreen color and depth attachment pair of equal
// size. A pass renders into it and a later pass of the same frame may
// sample its color texture, never both in one pass.
type RenderTarget struct {
	ctx   *Context
	label string

	width, height uint32
	colorFormat   gputypes.TextureFormat
	depthFormat   gputypes.TextureFormat
	withDepth     bool

	color     hal.Texture
	colorView hal.TextureView
	sampler   hal.Sampler
	depth     hal.Texture
	depthView hal.TextureView
}

// NewRenderTarget creates a width x height target.
//
// Unsupported requests fail with *UnsupportedError before anything is
// allocated: a zero dimension, a dimension above the device limit, or a
// color or depth format the adapter cannot render into. A failed
// allocation releases what was created and returns an *UnsupportedError
// wrapping ErrFramebufferIncomplete.
func NewRenderTarget(ctx *Context, width, height uint32, opts ...TargetOption) (*RenderTarget, error) {
	o := targetOptions{colorFormat: ctx.colorFormat, depth: true, label: "render_target"}
	for _, opt := range opts {
		opt(&o)
	}
	rt := &RenderTarget{
		ctx:         ctx,
		label:       o.label,
		colorFormat: o.colorFormat,
		depthFormat: ctx.depthFormat,
		withDepth:   o.depth,
	}
	if err := rt.check(width, height); err != nil {
		return nil, err
	}
	if err := rt.allocate(width, height); err != nil {
		return nil, err
	}
	Logger().Debug("gg3d: render target created", "label", rt.label, "width", width, "height", height)
	return rt, nil
}

func (rt *RenderTarget) check(width, height uint32) error {
	unsupported := func(format string, args ...any) error {
		return &UnsupportedError{Width: width, Height: height, Reason: fmt.Sprintf(format, args...)}
	}
	if width == 0 || height == 0 {
		return unsupported("zero dimension")
	}
	if limit := rt.ctx.limits.MaxTextureDimension2D; limit > 0 && (width > limit || height > limit) {
		return unsupported("larger than the device limit %d", limit)
	}
	if rt.withDepth && !rt.ctx.supportsAttachment(rt.depthFormat) {
		return unsupported("depth format %v is not renderable", rt.depthFormat)
	}
	if !rt.ctx.supportsAttachment(rt.colorFormat) {
		return unsupported("color format %v is not renderable", rt.colorFormat)
	}
	return nil
}

// allocate creates both attachments and swaps them in. On failure the
// previous attachments stay in place.
func (rt *RenderTarget) allocate(width, height uint32) error {
	device := rt.ctx.device
	var (
		color, depth         hal.Texture
		colorView, depthView hal.TextureView
		sampler              hal.Sampler
	)
	cleanup := func() {
		if sampler != nil {
			device.DestroySampler(sampler)
		}
		if depthView != nil {
			device.DestroyTextureView(depthView)
		}
		if depth != nil {
			device.DestroyTexture(depth)
		}
		if colorView != nil {
			device.DestroyTextureView(colorView)
		}
		if color != nil {
			device.DestroyTexture(color)
		}
	}
	incomplete := func(err error) error {
		cleanup()
		return &UnsupportedError{
			Width: width, Height: height,
			Reason: err.Error(),
			err:    ErrFramebufferIncomplete,
		}
	}

	size := hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1}
	var err error
	color, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         rt.label + "_color",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        rt.colorFormat,
		Usage: gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return incomplete(fmt.Errorf("create color texture: %w", err))
	}
	colorView, err = device.CreateTextureView(color, &hal.TextureViewDescriptor{
		Label:         rt.label + "_color_view",
		Format:        rt.colorFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return incomplete(fmt.Errorf("create color view: %w", err))
	}
	sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
		Label:        rt.label + "_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return incomplete(fmt.Errorf("create sampler: %w", err))
	}
	if rt.withDepth {
		depth, err = device.CreateTexture(&hal.TextureDescriptor{
			Label:         rt.label + "_depth",
			Size:          size,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        rt.depthFormat,
			Usage:         gputypes.TextureUsageRenderAttachment,
		})
		if err != nil {
			return incomplete(fmt.Errorf("create depth texture: %w", err))
		}
		depthView, err = device.CreateTextureView(depth, &hal.TextureViewDescriptor{
			Label:         rt.label + "_depth_view",
			Format:        rt.depthFormat,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectDepthOnly,
			MipLevelCount: 1,
		})
		if err != nil {
			return incomplete(fmt.Errorf("create depth view: %w", err))
		}
	}

	rt.release()
	rt.color, rt.colorView, rt.sampler = color, colorView, sampler
	rt.depth, rt.depthView = depth, depthView
	rt.width, rt.height = width, height
	return nil
}

// Resize reallocates both attachments. On error the target keeps its
// previous size and attachments.
func (rt *RenderTarget) Resize(width, height uint32) error {
	if width == rt.width && height == rt.height {
		return nil
	}
	if err := rt.check(width, height); err != nil {
		return err
	}
	return rt.allocate(width, height)
}

// Size returns the dimensions shared by both attachments.
func (rt *RenderTarget) Size() (width, height uint32) { return rt.width, rt.height }

// ColorFormat returns the format of the color attachment.
func (rt *RenderTarget) ColorFormat() gputypes.TextureFormat { return rt.colorFormat }

// DepthFormat returns the depth format, or Undefined without depth.
func (rt *RenderTarget) DepthFormat() gputypes.TextureFormat {
	if !rt.withDepth {
		return gputypes.TextureFormatUndefined
	}
	return rt.depthFormat
}

// ColorTexture returns the color texture, for readback.
func (rt *RenderTarget) ColorTexture() hal.Texture { return rt.color }

// ColorView returns the color attachment view.
func (rt *RenderTarget) ColorView() hal.TextureView { return rt.colorView }

// DepthView returns the depth attachment view, or nil.
func (rt *RenderTarget) DepthView() hal.TextureView { return rt.depthView }

// View returns the color view for sampling.
func (rt *RenderTarget) View() hal.TextureView { return rt.colorView }

// Sampler returns the linear clamp-to-edge sampler of the color texture.
func (rt *RenderTarget) Sampler() hal.Sampler { return rt.sampler }

func (rt *RenderTarget) release() {
	device := rt.ctx.device
	if rt.depthView != nil {
		device.DestroyTextureView(rt.depthView)
		rt.depthView = nil
	}
	if rt.depth != nil {
		device.DestroyTexture(rt.depth)
		rt.depth = nil
	}
	if rt.sampler != nil {
		device.DestroySampler(rt.sampler)
		rt.sampler = nil
	}
	if rt.colorView != nil {
		device.DestroyTextureView(rt.colorView)
		rt.colorView = nil
	}
	if rt.color != nil {
		device.DestroyTexture(rt.color)
		rt.color = nil
	}
}

// Destroy releases both attachments.
func (rt *RenderTarget) Destroy() {
	rt.release()
	rt.width, rt.height = 0, 0
}
