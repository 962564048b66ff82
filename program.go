package gg3d

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gg3d/internal/gpu"
	"github.com/gogpu/gg3d/internal/shaderir"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// maxStreams is the number of vertex buffers a program may declare.
const maxStreams = 8

// UniformKind is the binding class of a uniform slot.
type UniformKind uint8

const (
	// UniformBuffer is a value uploaded into the program's uniform block.
	UniformBuffer UniformKind = iota

	// UniformTexture is a sampled 2D texture.
	UniformTexture

	// UniformSampler is a sampler. It is bound together with the texture
	// it is paired with.
	UniformSampler
)

// String returns the kind name.
func (k UniformKind) String() string {
	switch k {
	case UniformBuffer:
		return "Buffer"
	case UniformTexture:
		return "Texture"
	case UniformSampler:
		return "Sampler"
	default:
		return fmt.Sprintf("UniformKind(%d)", int(k))
	}
}

// AttributeSlot is a vertex input of a program.
type AttributeSlot struct {
	Name     string
	Location uint32
	Format   gputypes.VertexFormat
}

// UniformSlot is a group 0 binding of a program.
type UniformSlot struct {
	Name    string
	Binding uint32
	Kind    UniformKind
	// Size is the byte size of a UniformBuffer value.
	Size   uint32
	Stages gputypes.ShaderStages
	// Sampler names the sampler bound with a UniformTexture, if any.
	Sampler string
	// Depth marks a depth texture or a comparison sampler.
	Depth bool
}

// Program is a linked vertex/fragment shader pair.
//
// Its attribute and uniform tables are filled once by Compile and never
// change afterwards. Render pipelines are created lazily, one per
// combination of target formats and streamed attributes, and cached.
type Program struct {
	ctx   *Context
	label string

	vs, fs     hal.ShaderModule
	vsEntry    string
	fsEntry    string
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  *gpu.PipelineCache[pipelineKey]

	attributes map[string]AttributeSlot
	streams    []AttributeSlot
	uniforms   map[string]UniformSlot
	bindings   []UniformSlot
	offsets    map[uint32]uint64
	spans      map[uint32]uint64
	blockSize  uint64
	caps       Capabilities

	depthCompare gputypes.CompareFunction

	mu        sync.Mutex
	enabled   bool
	destroyed bool
}

// pipelineKey identifies a render pipeline variant. A zero stream format
// means the attribute reads the constant fallback stream.
type pipelineKey struct {
	color      gputypes.TextureFormat
	depth      gputypes.TextureFormat
	streams    [maxStreams]gputypes.VertexFormat
	writeColor bool
	writeDepth bool
}

// Compile compiles and links a WGSL vertex/fragment pair.
//
// A stage that fails to parse or validate returns a *CompileError matching
// ErrShaderCompile; stages that disagree, or GPU objects that cannot be
// created, return one matching ErrProgramLink. On failure nothing stays
// allocated.
//
// On success the program becomes the context's active program with its
// attribute slots enabled.
func Compile(ctx *Context, label, vertexSource, fragmentSource string) (*Program, error) {
	if ctx == nil {
		return nil, ErrContextUnavailable
	}
	p, err := newProgram(ctx, label, vertexSource, fragmentSource)
	if err != nil {
		Logger().Warn("gg3d: program failed", "label", label, "err", err)
		return nil, err
	}
	p.enabled = true
	ctx.setActive(p)
	Logger().Info("gg3d: program compiled", "label", label,
		"attributes", len(p.attributes), "uniforms", len(p.uniforms))
	return p, nil
}

func newProgram(ctx *Context, label, vertexSource, fragmentSource string) (*Program, error) {
	layout, err := shaderir.Compile(vertexSource, fragmentSource)
	if err != nil {
		var d *shaderir.Diagnostic
		if errors.As(err, &d) {
			return nil, &CompileError{Stage: d.Stage, Label: label, Log: d.Log, err: err}
		}
		return nil, &CompileError{Stage: "link", Label: label, Log: err.Error(), err: err}
	}

	p := &Program{
		ctx:          ctx,
		label:        label,
		vsEntry:      layout.VertexEntry,
		fsEntry:      layout.FragmentEntry,
		depthCompare: gputypes.CompareFunctionLess,
	}
	if err := p.buildTables(layout); err != nil {
		return nil, &CompileError{Stage: "link", Label: label, Log: err.Error(), err: err}
	}
	if err := p.createObjects(vertexSource, fragmentSource); err != nil {
		p.destroyObjects()
		return nil, &CompileError{Stage: "link", Label: label, Log: err.Error(), err: err}
	}
	return p, nil
}

func (p *Program) buildTables(layout *shaderir.Layout) error {
	if len(layout.Streams) > maxStreams {
		return fmt.Errorf("%d vertex inputs, at most %d are supported", len(layout.Streams), maxStreams)
	}

	p.attributes = make(map[string]AttributeSlot, len(layout.Attributes))
	attrNames := make([]string, 0, len(layout.Attributes))
	for _, v := range layout.Attributes {
		f, err := vertexFormat(v.Type)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", v.Name, err)
		}
		p.attributes[v.Name] = AttributeSlot{Name: v.Name, Location: v.Location, Format: f}
		attrNames = append(attrNames, v.Name)
	}
	for _, v := range layout.Streams {
		f, err := vertexFormat(v.Type)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", v.Name, err)
		}
		p.streams = append(p.streams, AttributeSlot{Name: v.Name, Location: v.Location, Format: f})
	}

	align := uint64(p.ctx.limits.MinUniformBufferOffsetAlignment)
	if align == 0 {
		align = 256
	}
	p.uniforms = make(map[string]UniformSlot, len(layout.Resources))
	p.offsets = map[uint32]uint64{}
	p.spans = map[uint32]uint64{}
	uniformNames := make([]string, 0, len(layout.Resources))
	pendingTexture := -1
	for _, r := range layout.Resources {
		slot := UniformSlot{Name: r.Name, Binding: r.Binding, Stages: shaderStages(r.Stages)}
		switch r.Class {
		case shaderir.ResourceBuffer:
			slot.Kind = UniformBuffer
			slot.Size = r.Size
			p.offsets[r.Binding] = gpu.AlignUp(p.blockSize, align)
			p.spans[r.Binding] = gpu.AlignUp(uint64(r.Size), 16)
			p.blockSize = p.offsets[r.Binding] + p.spans[r.Binding]
		case shaderir.ResourceTexture, shaderir.ResourceDepthTexture:
			slot.Kind = UniformTexture
			slot.Depth = r.Class == shaderir.ResourceDepthTexture
			pendingTexture = len(p.bindings)
		case shaderir.ResourceSampler:
			slot.Kind = UniformSampler
			slot.Depth = r.Comparison
			if pendingTexture >= 0 {
				p.bindings[pendingTexture].Sampler = r.Name
				pendingTexture = -1
			}
		}
		p.bindings = append(p.bindings, slot)
		uniformNames = append(uniformNames, r.Name)
	}
	for _, slot := range p.bindings {
		p.uniforms[slot.Name] = slot
	}
	p.caps = newCapabilities(attrNames, uniformNames)
	return nil
}

func (p *Program) createObjects(vertexSource, fragmentSource string) error {
	device := p.ctx.device
	var err error

	p.vs, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label + "_vs",
		Source: hal.ShaderSource{WGSL: vertexSource},
	})
	if err != nil {
		return fmt.Errorf("create vertex module: %w", err)
	}
	p.fs, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  p.label + "_fs",
		Source: hal.ShaderSource{WGSL: fragmentSource},
	})
	if err != nil {
		return fmt.Errorf("create fragment module: %w", err)
	}

	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(p.bindings))
	for _, slot := range p.bindings {
		e := gputypes.BindGroupLayoutEntry{Binding: slot.Binding, Visibility: slot.Stages}
		switch slot.Kind {
		case UniformBuffer:
			e.Buffer = &gputypes.BufferBindingLayout{
				Type:           gputypes.BufferBindingTypeUniform,
				MinBindingSize: p.spans[slot.Binding],
			}
		case UniformTexture:
			sampleType := gputypes.TextureSampleTypeFloat
			if slot.Depth {
				sampleType = gputypes.TextureSampleTypeDepth
			}
			e.Texture = &gputypes.TextureBindingLayout{
				SampleType:    sampleType,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		case UniformSampler:
			samplerType := gputypes.SamplerBindingTypeFiltering
			if slot.Depth {
				samplerType = gputypes.SamplerBindingTypeComparison
			}
			e.Sampler = &gputypes.SamplerBindingLayout{Type: samplerType}
		}
		entries = append(entries, e)
	}
	p.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.label + "_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	p.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipelines = gpu.NewPipelineCache[pipelineKey](device)
	return nil
}

// destroyObjects releases GPU objects in reverse creation order.
func (p *Program) destroyObjects() {
	device := p.ctx.device
	if p.pipelines != nil {
		p.pipelines.Destroy()
		p.pipelines = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.fs != nil {
		device.DestroyShaderModule(p.fs)
		p.fs = nil
	}
	if p.vs != nil {
		device.DestroyShaderModule(p.vs)
		p.vs = nil
	}
}

// pipeline returns the cached pipeline for key, creating it on first use.
func (p *Program) pipeline(key pipelineKey) (hal.RenderPipeline, error) {
	return p.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		pl, err := p.createPipeline(key)
		if err != nil {
			return nil, err
		}
		Logger().Debug("gg3d: pipeline created", "program", p.label,
			"color", key.color, "depth", key.depth)
		return pl, nil
	})
}

func (p *Program) createPipeline(key pipelineKey) (hal.RenderPipeline, error) {
	buffers := make([]gputypes.VertexBufferLayout, len(p.streams))
	for i, s := range p.streams {
		format, step := key.streams[i], gputypes.VertexStepModeVertex
		if format == gputypes.VertexFormatUndefined {
			format, step = s.Format, gputypes.VertexStepModeInstance
		}
		buffers[i] = gputypes.VertexBufferLayout{
			ArrayStride: format.Size(),
			StepMode:    step,
			Attributes: []gputypes.VertexAttribute{
				{Format: format, Offset: 0, ShaderLocation: s.Location},
			},
		}
	}

	mask := gputypes.ColorWriteMaskAll
	if !key.writeColor {
		mask = gputypes.ColorWriteMaskNone
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  p.label + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.vs,
			EntryPoint: p.vsEntry,
			Buffers:    buffers,
		},
		Fragment: &hal.FragmentState{
			Module:     p.fs,
			EntryPoint: p.fsEntry,
			Targets: []gputypes.ColorTargetState{
				{Format: key.color, WriteMask: mask},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  gputypes.PrimitiveTopologyTriangleList,
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if key.depth != gputypes.TextureFormatUndefined {
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            key.depth,
			DepthWriteEnabled: key.writeDepth,
			DepthCompare:      p.depthCompare,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}
	pl, err := p.ctx.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s pipeline: %w", p.label, err)
	}
	return pl, nil
}

// Label returns the name the program was compiled with.
func (p *Program) Label() string { return p.label }

// Capabilities returns the set of declared names.
func (p *Program) Capabilities() Capabilities { return p.caps }

// Attribute returns the slot of a referenced vertex attribute.
func (p *Program) Attribute(name string) (AttributeSlot, bool) {
	s, ok := p.attributes[name]
	return s, ok
}

// Attributes returns the referenced vertex attributes ordered by location.
func (p *Program) Attributes() []AttributeSlot {
	out := make([]AttributeSlot, 0, len(p.attributes))
	for _, s := range p.attributes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// Uniform returns the slot of a referenced uniform, texture or sampler.
func (p *Program) Uniform(name string) (UniformSlot, bool) {
	s, ok := p.uniforms[name]
	return s, ok
}

// Uniforms returns the referenced bindings ordered by binding number.
func (p *Program) Uniforms() []UniformSlot {
	out := make([]UniformSlot, len(p.bindings))
	copy(out, p.bindings)
	return out
}

// PipelineStats returns pipeline cache hits and misses.
func (p *Program) PipelineStats() (hits, misses uint64) {
	if p.pipelines == nil {
		return 0, 0
	}
	return p.pipelines.Stats()
}

// Use makes p the active program of its context.
func (p *Program) Use() error {
	p.mu.Lock()
	destroyed := p.destroyed
	p.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}
	p.ctx.setActive(p)
	return nil
}

// Enable makes p active and streams vertex data into its attribute slots.
func (p *Program) Enable() error {
	if err := p.Use(); err != nil {
		return err
	}
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()
	return nil
}

// Disable stops vertex streaming. Until Enable is called again every
// attribute reads zero. The slot tables are kept.
func (p *Program) Disable() {
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

// Enabled reports whether attribute streaming is on.
func (p *Program) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Destroy releases the program's GPU objects. It is safe to call twice.
func (p *Program) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	p.enabled = false
	p.mu.Unlock()

	p.ctx.clearActive(p)
	p.destroyObjects()
}

func (p *Program) isDestroyed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroyed
}

func shaderStages(m shaderir.StageMask) gputypes.ShaderStages {
	var s gputypes.ShaderStages
	if m.Has(shaderir.StageVertex) {
		s |= gputypes.ShaderStageVertex
	}
	if m.Has(shaderir.StageFragment) {
		s |= gputypes.ShaderStageFragment
	}
	return s
}

var vertexFormats = map[shaderir.ScalarKind][4]gputypes.VertexFormat{
	shaderir.ScalarFloat: {gputypes.VertexFormatFloat32, gputypes.VertexFormatFloat32x2, gputypes.VertexFormatFloat32x3, gputypes.VertexFormatFloat32x4},
	shaderir.ScalarSint:  {gputypes.VertexFormatSint32, gputypes.VertexFormatSint32x2, gputypes.VertexFormatSint32x3, gputypes.VertexFormatSint32x4},
	shaderir.ScalarUint:  {gputypes.VertexFormatUint32, gputypes.VertexFormatUint32x2, gputypes.VertexFormatUint32x3, gputypes.VertexFormatUint32x4},
}

func vertexFormat(t shaderir.ValueType) (gputypes.VertexFormat, error) {
	formats, ok := vertexFormats[t.Kind]
	if !ok || t.Columns > 1 || t.Rows < 1 || t.Rows > 4 {
		return gputypes.VertexFormatUndefined, fmt.Errorf("%s cannot be a vertex input", t)
	}
	return formats[t.Rows-1], nil
}
