package gg3d

import (
	"fmt"
	"sort"

	"github.com/gogpu/gg3d/internal/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// TextureSource is anything that can be bound to a texture uniform.
// Texture and RenderTarget implement it.
type TextureSource interface {
	View() hal.TextureView
	Sampler() hal.Sampler
}

// DrawInfo describes one recorded draw.
type DrawInfo struct {
	Pass     string
	Program  string
	Vertices uint32
	// Attributes lists the attributes streamed from mesh buffers. Every
	// other declared attribute read the zero stream.
	Attributes []string
	// Uniforms holds the values set for the draw, pass values included.
	Uniforms map[string]any
	// Textures lists the bound texture uniforms.
	Textures []string
}

type streamBinding struct {
	buffer hal.Buffer
	format gputypes.VertexFormat
}

// DrawContext records the draws of one pass.
//
// Values are set by name and only accepted when the active program
// declares the name; the Set methods report whether it did. Per-draw
// values are cleared after every Draw, pass values persist for the pass.
//
// A value of the wrong shape does not fail the Set call. The error is kept
// and returned by the next Draw.
type DrawContext struct {
	ctx     *Context
	session *gpu.FrameSession
	pass    *gpu.RenderPassEncoder
	name    string

	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
	writeColor  bool
	writeDepth  bool

	program *Program

	passUniforms map[string]any
	passTextures map[string]TextureSource
	uniforms     map[string]any
	textures     map[string]TextureSource
	streams      map[string]streamBinding

	draws    int
	vertices uint64

	err    error
	onDraw func(DrawInfo)
}

func newDrawContext(ctx *Context, session *gpu.FrameSession, pass *gpu.RenderPassEncoder, name string,
	color, depth gputypes.TextureFormat) *DrawContext {
	return &DrawContext{
		ctx:          ctx,
		session:      session,
		pass:         pass,
		name:         name,
		colorFormat:  color,
		depthFormat:  depth,
		writeColor:   true,
		writeDepth:   true,
		passUniforms: map[string]any{},
		passTextures: map[string]TextureSource{},
		uniforms:     map[string]any{},
		textures:     map[string]TextureSource{},
		streams:      map[string]streamBinding{},
	}
}

// Program returns the program draws are recorded with: the one selected
// for the pass, or else the context's active program.
func (dc *DrawContext) Program() *Program {
	if dc.program != nil {
		return dc.program
	}
	return dc.ctx.ActiveProgram()
}

// Capabilities returns the declared names of the current program.
func (dc *DrawContext) Capabilities() Capabilities {
	if p := dc.Program(); p != nil {
		return p.caps
	}
	return Capabilities{}
}

// Pass returns the name of the pass being recorded.
func (dc *DrawContext) Pass() string { return dc.name }

// SetAttribute streams buffer into the named attribute for the next draw.
func (dc *DrawContext) SetAttribute(name string, buffer hal.Buffer, format gputypes.VertexFormat) bool {
	p := dc.Program()
	if p == nil {
		return false
	}
	if _, ok := p.attributes[name]; !ok {
		return false
	}
	dc.streams[name] = streamBinding{buffer: buffer, format: format}
	return true
}

// SetUniform sets a uniform value for the next draw.
func (dc *DrawContext) SetUniform(name string, value any) bool {
	return dc.setUniform(dc.uniforms, name, value)
}

// SetPassUniform sets a uniform value for every remaining draw of the pass.
func (dc *DrawContext) SetPassUniform(name string, value any) bool {
	return dc.setUniform(dc.passUniforms, name, value)
}

func (dc *DrawContext) setUniform(dst map[string]any, name string, value any) bool {
	p := dc.Program()
	if p == nil {
		return false
	}
	slot, ok := p.uniforms[name]
	if !ok {
		return false
	}
	if slot.Kind != UniformBuffer {
		dc.fail(fmt.Errorf("uniform %q is a %s, not a value", name, slot.Kind))
		return false
	}
	if _, err := encodeUniform(slot, value); err != nil {
		dc.fail(err)
		return false
	}
	dst[name] = value
	return true
}

// SetTexture binds src to the named texture uniform, and its sampler to
// the sampler paired with it, for the next draw.
func (dc *DrawContext) SetTexture(name string, src TextureSource) bool {
	return dc.setTexture(dc.textures, name, src)
}

// SetPassTexture binds src for every remaining draw of the pass.
func (dc *DrawContext) SetPassTexture(name string, src TextureSource) bool {
	return dc.setTexture(dc.passTextures, name, src)
}

func (dc *DrawContext) setTexture(dst map[string]TextureSource, name string, src TextureSource) bool {
	p := dc.Program()
	if p == nil || src == nil {
		return false
	}
	slot, ok := p.uniforms[name]
	if !ok || slot.Kind != UniformTexture {
		return false
	}
	dst[name] = src
	return true
}

func (dc *DrawContext) fail(err error) {
	if dc.err == nil {
		dc.err = err
	}
}

func (dc *DrawContext) resetDraw() {
	clear(dc.uniforms)
	clear(dc.textures)
	clear(dc.streams)
}

// Draw records a non-indexed triangle-list draw of vertexCount vertices
// with everything set since the previous draw, then clears the per-draw
// values.
func (dc *DrawContext) Draw(vertexCount uint32) error {
	defer dc.resetDraw()
	if dc.err != nil {
		err := dc.err
		dc.err = nil
		return fmt.Errorf("%s: %w", dc.name, err)
	}
	p := dc.Program()
	if p == nil {
		return ErrNoProgram
	}
	if p.isDestroyed() {
		return ErrDestroyed
	}
	enabled := p.Enabled()

	key := pipelineKey{
		color:      dc.colorFormat,
		depth:      dc.depthFormat,
		writeColor: dc.writeColor,
		writeDepth: dc.writeDepth,
	}
	buffers := make([]hal.Buffer, len(p.streams))
	var streamed []string
	for i, s := range p.streams {
		b, ok := dc.streams[s.Name]
		if !enabled || !ok || b.buffer == nil {
			buffers[i] = dc.ctx.zeroStream
			continue
		}
		key.streams[i] = b.format
		buffers[i] = b.buffer
		streamed = append(streamed, s.Name)
	}
	pipeline, err := p.pipeline(key)
	if err != nil {
		return err
	}

	values := make(map[string]any, len(dc.passUniforms)+len(dc.uniforms))
	for k, v := range dc.passUniforms {
		values[k] = v
	}
	for k, v := range dc.uniforms {
		values[k] = v
	}
	group, bound, err := dc.bindGroup(p, values)
	if err != nil {
		return err
	}

	if err := dc.pass.SetPipeline(pipeline); err != nil {
		return err
	}
	if err := dc.pass.SetBindGroup(0, group); err != nil {
		return err
	}
	for i, b := range buffers {
		if err := dc.pass.SetVertexBuffer(uint32(i), b, 0); err != nil {
			return err
		}
	}
	if err := dc.pass.Draw(vertexCount, 1); err != nil {
		return err
	}
	dc.draws++
	dc.vertices += uint64(vertexCount)

	if dc.onDraw != nil {
		dc.onDraw(DrawInfo{
			Pass:       dc.name,
			Program:    p.label,
			Vertices:   vertexCount,
			Attributes: streamed,
			Uniforms:   values,
			Textures:   bound,
		})
	}
	return nil
}

// bindGroup uploads the uniform block and creates the frame's bind group.
// Unset values read zero; unset textures and samplers use the context's
// fallbacks.
func (dc *DrawContext) bindGroup(p *Program, values map[string]any) (hal.BindGroup, []string, error) {
	var block hal.Buffer
	if p.blockSize > 0 {
		data := make([]byte, p.blockSize)
		for name, v := range values {
			slot, ok := p.uniforms[name]
			if !ok {
				continue
			}
			enc, err := encodeUniform(slot, v)
			if err != nil {
				return nil, nil, err
			}
			copy(data[p.offsets[slot.Binding]:], enc)
		}
		var err error
		block, err = dc.session.UploadBuffer(p.label+"_uniforms", gputypes.BufferUsageUniform, data)
		if err != nil {
			return nil, nil, fmt.Errorf("upload uniforms: %w", err)
		}
	}

	samplers := map[string]hal.Sampler{}
	var bound []string
	views := map[string]hal.TextureView{}
	for _, slot := range p.bindings {
		if slot.Kind != UniformTexture {
			continue
		}
		src, ok := dc.textures[slot.Name]
		if !ok {
			src, ok = dc.passTextures[slot.Name]
		}
		if !ok {
			continue
		}
		views[slot.Name] = src.View()
		if slot.Sampler != "" {
			samplers[slot.Sampler] = src.Sampler()
		}
		bound = append(bound, slot.Name)
	}
	sort.Strings(bound)

	entries := make([]gputypes.BindGroupEntry, 0, len(p.bindings))
	for _, slot := range p.bindings {
		var res gputypes.BindingResource
		switch slot.Kind {
		case UniformBuffer:
			res = gputypes.BufferBinding{
				Buffer: block.NativeHandle(),
				Offset: p.offsets[slot.Binding],
				Size:   p.spans[slot.Binding],
			}
		case UniformTexture:
			view := views[slot.Name]
			if view == nil {
				view = dc.ctx.fallbackTextureView(slot.Depth)
			}
			res = gputypes.TextureViewBinding{TextureView: view.NativeHandle()}
		case UniformSampler:
			s := samplers[slot.Name]
			if s == nil {
				s = dc.ctx.fallbackSamplerFor(slot.Depth)
			}
			res = gputypes.SamplerBinding{Sampler: s.NativeHandle()}
		}
		entries = append(entries, gputypes.BindGroupEntry{Binding: slot.Binding, Resource: res})
	}
	group, err := dc.session.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.label + "_bind_group",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, nil, err
	}
	return group, bound, nil
}
