package gg3d

import (
	"fmt"
	"sync"

	"github.com/gogpu/gg3d/internal/gpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Context is the graphics context every gg3d object is created from.
//
// It wraps a HAL device and queue, remembers which Program is active, and
// owns the fallback resources bound when a program declares an input the
// caller did not supply: a zero vertex stream, a 1x1 texture and a sampler.
//
// A Context is safe for concurrent use, but rendering is expected to happen
// from a single goroutine at frame boundaries.
type Context struct {
	device  hal.Device
	queue   hal.Queue
	adapter hal.Adapter
	owned   *gpu.Device

	limits      gputypes.Limits
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat

	mu     sync.Mutex
	active *Program
	clear  *Program
	closed bool

	zeroStream      hal.Buffer
	fallbackTexture hal.Texture
	fallbackView    hal.TextureView
	fallbackSampler hal.Sampler

	// Bound to texture_depth_2d and sampler_comparison slots left unset.
	fallbackDepth     hal.Texture
	fallbackDepthView hal.TextureView
	fallbackCompare   hal.Sampler
}

// zeroStreamSize covers the largest vertex format a program can declare.
const zeroStreamSize = 16

var backends = gpu.NewBackends()

// RegisterBackend makes a HAL backend available to Open under name.
// Commands register the backends their platform supports at startup.
func RegisterBackend(name string, backend hal.Backend) {
	backends.Register(name, backend)
}

// Backends returns the names of the registered backends.
func Backends() []string {
	return backends.Names()
}

// Open opens the named backend and returns a context that owns the device.
// An empty name or "auto" picks the preferred registered backend.
func Open(name string, opts ...ContextOption) (*Context, error) {
	dev, err := backends.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContextUnavailable, err)
	}
	all := append([]ContextOption{WithAdapter(dev.Adapter), WithLimits(dev.Limits)}, opts...)
	ctx, err := NewContext(dev.Device, dev.Queue, all...)
	if err != nil {
		dev.Close()
		return nil, err
	}
	ctx.owned = dev
	Logger().Info("gg3d: context opened", "backend", name, "adapter", dev.Info.Name)
	return ctx, nil
}

// NewContext wraps an existing device and queue. The caller keeps
// ownership of both; Close releases only what the context created.
func NewContext(device hal.Device, queue hal.Queue, opts ...ContextOption) (*Context, error) {
	if device == nil || queue == nil {
		return nil, ErrContextUnavailable
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Context{
		device:      device,
		queue:       queue,
		adapter:     o.adapter,
		limits:      o.limits,
		colorFormat: o.colorFormat,
		depthFormat: o.depthFormat,
	}
	if err := c.createFallbacks(); err != nil {
		c.destroyFallbacks()
		return nil, fmt.Errorf("%w: %w", ErrContextUnavailable, err)
	}
	return c, nil
}

// NewContextFromProvider shares the device of a host application. The
// provider must also expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The surface format becomes the default color
// format unless an option overrides it.
func NewContextFromProvider(provider gpucontext.DeviceProvider, opts ...ContextOption) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", ErrContextUnavailable)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrContextUnavailable)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrContextUnavailable)
	}
	all := append([]ContextOption{WithColorFormat(provider.SurfaceFormat())}, opts...)
	return NewContext(device, queue, all...)
}

func (c *Context) createFallbacks() error {
	var err error
	c.zeroStream, err = gpu.CreateBufferWithData(c.device, c.queue, "gg3d_zero_stream",
		gputypes.BufferUsageVertex, make([]byte, zeroStreamSize))
	if err != nil {
		return err
	}

	c.fallbackTexture, err = c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gg3d_fallback_texture",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create fallback texture: %w", err)
	}
	if err := c.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: c.fallbackTexture, Aspect: gputypes.TextureAspectAll},
		[]byte{255, 255, 255, 255},
		&hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	); err != nil {
		return fmt.Errorf("write fallback texture: %w", err)
	}
	c.fallbackView, err = c.device.CreateTextureView(c.fallbackTexture, &hal.TextureViewDescriptor{
		Label:         "gg3d_fallback_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create fallback view: %w", err)
	}
	c.fallbackSampler, err = c.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "gg3d_fallback_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
	})
	if err != nil {
		return fmt.Errorf("create fallback sampler: %w", err)
	}
	return c.createDepthFallbacks()
}

// createDepthFallbacks makes a 1x1 depth texture and a comparison sampler.
// Depth textures cannot be written by the queue; the zero-initialized
// contents are used as is.
func (c *Context) createDepthFallbacks() error {
	var err error
	c.fallbackDepth, err = c.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "gg3d_fallback_depth",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatDepth32Float,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create fallback depth texture: %w", err)
	}
	c.fallbackDepthView, err = c.device.CreateTextureView(c.fallbackDepth, &hal.TextureViewDescriptor{
		Label:         "gg3d_fallback_depth_view",
		Format:        gputypes.TextureFormatDepth32Float,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectDepthOnly,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create fallback depth view: %w", err)
	}
	c.fallbackCompare, err = c.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "gg3d_fallback_compare",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
		LodMaxClamp:  32,
		Compare:      gputypes.CompareFunctionLessEqual,
	})
	if err != nil {
		return fmt.Errorf("create fallback comparison sampler: %w", err)
	}
	return nil
}

func (c *Context) destroyFallbacks() {
	if c.fallbackCompare != nil {
		c.device.DestroySampler(c.fallbackCompare)
		c.fallbackCompare = nil
	}
	if c.fallbackDepthView != nil {
		c.device.DestroyTextureView(c.fallbackDepthView)
		c.fallbackDepthView = nil
	}
	if c.fallbackDepth != nil {
		c.device.DestroyTexture(c.fallbackDepth)
		c.fallbackDepth = nil
	}
	if c.fallbackSampler != nil {
		c.device.DestroySampler(c.fallbackSampler)
		c.fallbackSampler = nil
	}
	if c.fallbackView != nil {
		c.device.DestroyTextureView(c.fallbackView)
		c.fallbackView = nil
	}
	if c.fallbackTexture != nil {
		c.device.DestroyTexture(c.fallbackTexture)
		c.fallbackTexture = nil
	}
	if c.zeroStream != nil {
		c.device.DestroyBuffer(c.zeroStream)
		c.zeroStream = nil
	}
}

// fallbackTextureView returns the view bound to an unset texture slot.
func (c *Context) fallbackTextureView(depth bool) hal.TextureView {
	if depth {
		return c.fallbackDepthView
	}
	return c.fallbackView
}

// fallbackSamplerFor returns the sampler bound to an unset sampler slot.
func (c *Context) fallbackSamplerFor(comparison bool) hal.Sampler {
	if comparison {
		return c.fallbackCompare
	}
	return c.fallbackSampler
}

// Device returns the HAL device.
func (c *Context) Device() hal.Device { return c.device }

// Queue returns the HAL queue.
func (c *Context) Queue() hal.Queue { return c.queue }

// Limits returns the limits textures are validated against.
func (c *Context) Limits() gputypes.Limits { return c.limits }

// ColorFormat returns the default color format of render targets.
func (c *Context) ColorFormat() gputypes.TextureFormat { return c.colorFormat }

// DepthFormat returns the depth format of render targets.
func (c *Context) DepthFormat() gputypes.TextureFormat { return c.depthFormat }

// ActiveProgram returns the program most recently compiled or selected
// with Use, or nil.
func (c *Context) ActiveProgram() *Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// setActive makes p the active program and disables the attribute slots of
// the one it replaces.
func (c *Context) setActive(p *Program) {
	c.mu.Lock()
	prev := c.active
	c.active = p
	c.mu.Unlock()
	if prev != nil && prev != p {
		prev.Disable()
	}
}

func (c *Context) clearActive(p *Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == p {
		c.active = nil
	}
}

// clearProgram returns the program used for scissored clears, compiling it
// on first use. It never becomes the active program.
func (c *Context) clearProgram() (*Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clear != nil {
		return c.clear, nil
	}
	p, err := newProgram(c, "clear", mustShader("clear_vs.wgsl"), mustShader("clear_fs.wgsl"))
	if err != nil {
		return nil, err
	}
	p.depthCompare = gputypes.CompareFunctionAlways
	p.enabled = true
	c.clear = p
	return p, nil
}

// supportsAttachment reports whether the adapter can render into format.
func (c *Context) supportsAttachment(format gputypes.TextureFormat) bool {
	return gpu.SupportsRenderAttachment(c.adapter, format)
}

// Close releases the context's own resources, and the device when the
// context was created by Open. Programs, meshes, textures and render
// targets must be destroyed by their owners first.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cp := c.clear
	c.clear = nil
	c.active = nil
	c.mu.Unlock()

	if cp != nil {
		cp.Destroy()
	}
	c.destroyFallbacks()
	if c.owned != nil {
		c.owned.Close()
		c.owned = nil
	}
}
