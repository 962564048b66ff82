package gg3d

import (
	"sync/atomic"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// positionOnlyVS reads a_position and u_worldMatrix only.
const positionOnlyVS = `
@group(0) @binding(0) var<uniform> u_worldMatrix: mat4x4<f32>;

@vertex
fn vs_main(@location(0) a_position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return u_worldMatrix * vec4<f32>(a_position, 1.0);
}
`

const whiteFS = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}
`

// normalVS declares a_normal and u_normalMatrix.
const normalVS = `
@group(0) @binding(0) var<uniform> u_worldMatrix: mat4x4<f32>;
@group(0) @binding(1) var<uniform> u_normalMatrix: mat3x3<f32>;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) v_normal: vec3<f32>,
}

@vertex
fn vs_main(@location(0) a_position: vec3<f32>, @location(1) a_normal: vec3<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = u_worldMatrix * vec4<f32>(a_position, 1.0);
    out.v_normal = u_normalMatrix * a_normal;
    return out;
}
`

const normalFS = `
@fragment
fn fs_main(@location(0) v_normal: vec3<f32>) -> @location(0) vec4<f32> {
    return vec4<f32>(normalize(v_normal), 1.0);
}
`

// approx reports whether got and want differ by less than 1e-5 in every
// component. mgl32's ApproxEqual is relative, which fails next to zero.
func approx(got, want []float32) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if d := got[i] - want[i]; d > 1e-5 || d < -1e-5 {
			return false
		}
	}
	return true
}

// countingDevice wraps a HAL device and counts resource creation.
type countingDevice struct {
	hal.Device

	textures  atomic.Int32
	views     atomic.Int32
	samplers  atomic.Int32
	buffers   atomic.Int32
	pipelines atomic.Int32
}

func (d *countingDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.textures.Add(1)
	return d.Device.CreateTexture(desc)
}

func (d *countingDevice) CreateTextureView(t hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	d.views.Add(1)
	v, err := d.Device.CreateTextureView(t, desc)
	if err != nil {
		return nil, err
	}
	return &labeledView{TextureView: v, desc: *desc}, nil
}

func (d *countingDevice) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.samplers.Add(1)
	s, err := d.Device.CreateSampler(desc)
	if err != nil {
		return nil, err
	}
	return &labeledSampler{Sampler: s, desc: *desc}, nil
}

// labeledView and labeledSampler keep the descriptor a resource was
// created from, since noop resources are indistinguishable.
type labeledView struct {
	hal.TextureView
	desc hal.TextureViewDescriptor
}

type labeledSampler struct {
	hal.Sampler
	desc hal.SamplerDescriptor
}

func (d *countingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.buffers.Add(1)
	return d.Device.CreateBuffer(desc)
}

func (d *countingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.pipelines.Add(1)
	return d.Device.CreateRenderPipeline(desc)
}

// countingQueue wraps a HAL queue and counts submissions and texture writes.
type countingQueue struct {
	hal.Queue

	submits atomic.Int32
	writes  atomic.Int32
}

func (q *countingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.submits.Add(1)
	return q.Queue.Submit(cmds)
}

func (q *countingQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.writes.Add(1)
	return q.Queue.WriteTexture(dst, data, layout, size)
}

// denyAdapter reports one texture format as not renderable.
type denyAdapter struct {
	hal.Adapter
	deny gputypes.TextureFormat
}

func (a denyAdapter) TextureFormatCapabilities(format gputypes.TextureFormat) hal.TextureFormatCapabilities {
	caps := a.Adapter.TextureFormatCapabilities(format)
	if format == a.deny {
		caps.Flags &^= hal.TextureFormatCapabilityRenderAttachment
	}
	return caps
}

type testGPU struct {
	adapter hal.Adapter
	device  *countingDevice
	queue   *countingQueue
}

func openNoop(t *testing.T) *testGPU {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("no noop adapter")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return &testGPU{
		adapter: adapters[0].Adapter,
		device:  &countingDevice{Device: openDev.Device},
		queue:   &countingQueue{Queue: openDev.Queue},
	}
}

// newTestContext returns a context over the noop backend with counting
// wrappers around the device and queue.
func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *testGPU) {
	t.Helper()
	g := openNoop(t)
	all := append([]ContextOption{WithAdapter(g.adapter)}, opts...)
	ctx, err := NewContext(g.device, g.queue, all...)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(ctx.Close)
	return ctx, g
}

func mustCompile(t *testing.T, ctx *Context, label, vs, fs string) *Program {
	t.Helper()
	p, err := Compile(ctx, label, vs, fs)
	if err != nil {
		t.Fatalf("Compile(%s) failed: %v", label, err)
	}
	t.Cleanup(p.Destroy)
	return p
}

func mustTarget(t *testing.T, ctx *Context, w, h uint32, opts ...TargetOption) *RenderTarget {
	t.Helper()
	rt, err := NewRenderTarget(ctx, w, h, opts...)
	if err != nil {
		t.Fatalf("NewRenderTarget(%d, %d) failed: %v", w, h, err)
	}
	t.Cleanup(rt.Destroy)
	return rt
}
