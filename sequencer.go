package gg3d

import (
	"fmt"
	"image"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gg3d/internal/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// PassKind orders passes within a frame.
type PassKind uint8

const (
	// PassShadow renders scene depth from the light into a RenderTarget.
	PassShadow PassKind = iota

	// PassBlit draws a diagnostic view of an earlier pass's output. It has
	// no depth attachment.
	PassBlit

	// PassMain renders the lit scene.
	PassMain
)

// String returns the pass kind name.
func (k PassKind) String() string {
	switch k {
	case PassShadow:
		return "Shadow"
	case PassBlit:
		return "Blit"
	case PassMain:
		return "Main"
	default:
		return fmt.Sprintf("PassKind(%d)", int(k))
	}
}

// SequencerState is the position of a FrameSequencer within a frame.
type SequencerState uint8

const (
	StateIdle SequencerState = iota
	StateShadowPass
	StateBlitPass
	StateMainPass
	StateDone
)

// String returns the state name.
func (s SequencerState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateShadowPass:
		return "ShadowPass"
	case StateBlitPass:
		return "BlitPass"
	case StateMainPass:
		return "MainPass"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("SequencerState(%d)", int(s))
	}
}

func (k PassKind) state() SequencerState {
	switch k {
	case PassShadow:
		return StateShadowPass
	case PassBlit:
		return StateBlitPass
	default:
		return StateMainPass
	}
}

// Rect is a pixel rectangle with the origin at the top left.
type Rect struct {
	X, Y, Width, Height uint32
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width == 0 || r.Height == 0 }

// ClearPolicy says what a pass clears before drawing. With a scissor only
// the scissor rectangle is cleared.
type ClearPolicy struct {
	Color bool
	Depth bool
	Value gputypes.Color
}

func defaultClear(k PassKind) ClearPolicy {
	return ClearPolicy{
		Color: true,
		Depth: k != PassBlit,
		Value: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
	}
}

// Pass is one bind, clear and draw cycle of a frame. The frame driver may
// update its matrices, uniforms and meshes between frames.
type Pass struct {
	Name string
	Kind PassKind

	// Target is the destination; nil draws into the frame's surface.
	Target *RenderTarget

	// Viewport defaults to the whole destination.
	Viewport Rect
	// Scissor restricts clears and draws to a sub-rectangle.
	Scissor *Rect
	// Clear defaults to color and depth, or color only for blit passes.
	Clear *ClearPolicy

	Program *Program

	// Projection and View are uploaded as u_projectionMatrix and
	// u_viewMatrix unless they are zero.
	Projection mgl32.Mat4
	View       mgl32.Mat4

	// Uniforms and Textures are pass-wide values, such as the light
	// direction or the shadow map.
	Uniforms map[string]any
	Textures map[string]TextureSource

	Meshes []*Mesh
}

// PassStats counts the draws of one pass.
type PassStats struct {
	Name     string
	Kind     PassKind
	Draws    int
	Vertices uint64
}

// FrameStats describes the last rendered frame.
type FrameStats struct {
	Frame  uint64
	Passes []PassStats
}

// FrameSequencer renders an ordered list of passes per frame.
//
// All passes of a frame are encoded into one command encoder and submitted
// once, in declaration order, so a pass sampling a RenderTarget sees what
// an earlier pass wrote in the same frame.
//
// States advance Idle, ShadowPass, BlitPass, MainPass, Done; kinds absent
// from the pass list are skipped. The next frame starts from Idle.
type FrameSequencer struct {
	ctx    *Context
	passes []*Pass

	mu           sync.Mutex
	state        SequencerState
	frame        uint64
	stats        FrameStats
	onTransition func(from, to SequencerState)
	onDraw       func(DrawInfo)
}

// NewFrameSequencer checks that passes are ordered Shadow, Blit, Main.
func NewFrameSequencer(ctx *Context, passes ...*Pass) (*FrameSequencer, error) {
	if ctx == nil {
		return nil, ErrContextUnavailable
	}
	for i, p := range passes {
		if p == nil {
			return nil, fmt.Errorf("gg3d: pass %d is nil", i)
		}
		if i > 0 && p.Kind < passes[i-1].Kind {
			return nil, fmt.Errorf("%w: %s pass %q after %s pass %q",
				ErrPassOrder, p.Kind, p.Name, passes[i-1].Kind, passes[i-1].Name)
		}
	}
	return &FrameSequencer{ctx: ctx, passes: passes}, nil
}

// Passes returns the pass list.
func (s *FrameSequencer) Passes() []*Pass { return s.passes }

// State returns the current state.
func (s *FrameSequencer) State() SequencerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnTransition registers fn to observe state changes. It runs on the
// rendering goroutine.
func (s *FrameSequencer) OnTransition(fn func(from, to SequencerState)) {
	s.mu.Lock()
	s.onTransition = fn
	s.mu.Unlock()
}

// OnDraw registers fn to observe every recorded draw.
func (s *FrameSequencer) OnDraw(fn func(DrawInfo)) {
	s.mu.Lock()
	s.onDraw = fn
	s.mu.Unlock()
}

// Stats returns the statistics of the last completed frame.
func (s *FrameSequencer) Stats() FrameStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Passes = append([]PassStats(nil), s.stats.Passes...)
	return out
}

func (s *FrameSequencer) transition(to SequencerState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	fn := s.onTransition
	s.mu.Unlock()
	if fn != nil && from != to {
		fn(from, to)
	}
}

// validate rejects passes that cannot be encoded, before anything is
// recorded.
func (s *FrameSequencer) validate(surface Surface) error {
	for _, p := range s.passes {
		if p.Program == nil {
			return fmt.Errorf("pass %q: %w", p.Name, ErrNoProgram)
		}
		if p.Program.isDestroyed() {
			return fmt.Errorf("pass %q: %w", p.Name, ErrDestroyed)
		}
		var dst Surface = surface
		if p.Target != nil {
			dst = p.Target
		}
		if dst == nil {
			return fmt.Errorf("pass %q: no render target and no surface", p.Name)
		}
		if sc := p.Scissor; sc != nil {
			w, h := dst.Size()
			if uint64(sc.X)+uint64(sc.Width) > uint64(w) || uint64(sc.Y)+uint64(sc.Height) > uint64(h) {
				return fmt.Errorf("pass %q scissor %+v on %dx%d: %w", p.Name, *sc, w, h, ErrScissorBounds)
			}
		}
		rt, ok := dst.(*RenderTarget)
		if !ok {
			continue
		}
		for name, src := range p.Textures {
			if src == TextureSource(rt) {
				return fmt.Errorf("pass %q samples %s: %w", p.Name, name, ErrFeedbackLoop)
			}
		}
		for _, m := range p.Meshes {
			if m.Texture == TextureSource(rt) {
				return fmt.Errorf("pass %q mesh texture: %w", p.Name, ErrFeedbackLoop)
			}
		}
	}
	return nil
}

// RenderFrame encodes every pass and submits them together. Per-frame
// uniform buffers and bind groups are released once the GPU is done.
func (s *FrameSequencer) RenderFrame(surface Surface) error {
	_, err := s.render(surface, nil)
	return err
}

// RenderAndCapture renders a frame with target as the surface and reads
// the target back. Its color format must be RGBA8 or BGRA8.
func (s *FrameSequencer) RenderAndCapture(target *RenderTarget) (*image.RGBA, error) {
	switch target.ColorFormat() {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
	default:
		return nil, fmt.Errorf("%w: cannot capture %v targets", ErrUnsupported, target.ColorFormat())
	}
	rb, err := s.render(target, target)
	if err != nil {
		return nil, err
	}
	px, err := rb.Pixels()
	if err != nil {
		return nil, err
	}
	w, h := rb.Size()
	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	copy(img.Pix, px)
	return img, nil
}

func (s *FrameSequencer) render(surface Surface, capture *RenderTarget) (*gpu.Readback, error) {
	if s.State() == StateDone {
		s.transition(StateIdle)
	}
	if st := s.State(); st != StateIdle {
		return nil, fmt.Errorf("gg3d: frame already in progress (%s)", st)
	}
	if err := s.validate(surface); err != nil {
		return nil, err
	}

	session, err := gpu.BeginFrame(s.ctx.device, s.ctx.queue, "gg3d_frame")
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*gpu.Readback, error) {
		session.Discard()
		s.transition(StateIdle)
		return nil, err
	}

	stats := make([]PassStats, 0, len(s.passes))
	for _, p := range s.passes {
		s.transition(p.Kind.state())
		ps, err := s.encodePass(session, surface, p)
		if err != nil {
			return fail(fmt.Errorf("pass %q: %w", p.Name, err))
		}
		stats = append(stats, ps)
	}

	var (
		rb    *gpu.Readback
		after func() error
	)
	if capture != nil {
		w, h := capture.Size()
		rb, err = gpu.EncodeReadback(session, capture.ColorTexture(), capture.ColorFormat(), w, h)
		if err != nil {
			return fail(err)
		}
		after = rb.Read
	}
	if err := session.Submit(after); err != nil {
		s.transition(StateIdle)
		return nil, err
	}

	s.mu.Lock()
	s.frame++
	s.stats = FrameStats{Frame: s.frame, Passes: stats}
	s.mu.Unlock()
	s.transition(StateDone)
	return rb, nil
}

func (s *FrameSequencer) encodePass(session *gpu.FrameSession, surface Surface, p *Pass) (PassStats, error) {
	stats := PassStats{Name: p.Name, Kind: p.Kind}

	var dst Surface = surface
	if p.Target != nil {
		dst = p.Target
	}
	width, height := dst.Size()
	colorFormat := dst.ColorFormat()
	depthFormat := dst.DepthFormat()
	depthView := dst.DepthView()
	if p.Kind == PassBlit {
		depthFormat, depthView = gputypes.TextureFormatUndefined, nil
	}

	policy := defaultClear(p.Kind)
	if p.Clear != nil {
		policy = *p.Clear
	}
	scissored := p.Scissor != nil

	desc := &hal.RenderPassDescriptor{
		Label: p.Name,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       dst.ColorView(),
			LoadOp:     loadOp(policy.Color && !scissored),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: policy.Value,
		}},
	}
	if depthView != nil {
		desc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            depthView,
			DepthLoadOp:     loadOp(policy.Depth && !scissored),
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1,
		}
	}
	pass, err := session.BeginRenderPass(desc)
	if err != nil {
		return stats, err
	}
	defer func() { _ = pass.End() }()

	vp := p.Viewport
	if vp.Empty() {
		vp = Rect{Width: width, Height: height}
	}
	if scissored {
		sc := *p.Scissor
		if err := pass.SetScissorRect(sc.X, sc.Y, sc.Width, sc.Height); err != nil {
			return stats, err
		}
		if policy.Color || (policy.Depth && depthView != nil) {
			if err := s.scissoredClear(session, pass, p.Name, sc, policy, colorFormat, depthFormat); err != nil {
				return stats, err
			}
		}
	}
	if err := pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1); err != nil {
		return stats, err
	}

	if err := p.Program.Enable(); err != nil {
		return stats, err
	}
	dc := newDrawContext(s.ctx, session, pass, p.Name, colorFormat, depthFormat)
	dc.program = p.Program
	s.mu.Lock()
	dc.onDraw = s.onDraw
	s.mu.Unlock()

	var zero mgl32.Mat4
	if p.Projection != zero {
		dc.SetPassUniform("u_projectionMatrix", p.Projection)
	}
	if p.View != zero {
		dc.SetPassUniform("u_viewMatrix", p.View)
	}
	for name, v := range p.Uniforms {
		dc.SetPassUniform(name, v)
	}
	for name, src := range p.Textures {
		dc.SetPassTexture(name, src)
	}
	for _, m := range p.Meshes {
		if err := m.Render(dc); err != nil {
			return stats, err
		}
	}
	if dc.err != nil {
		return stats, dc.err
	}
	stats.Draws, stats.Vertices = dc.draws, dc.vertices
	return stats, pass.End()
}

// scissoredClear clears the scissor rectangle by drawing a full-viewport
// triangle at the far plane, since attachment clears ignore the scissor.
func (s *FrameSequencer) scissoredClear(session *gpu.FrameSession, pass *gpu.RenderPassEncoder, name string,
	sc Rect, policy ClearPolicy, color, depth gputypes.TextureFormat) error {
	cp, err := s.ctx.clearProgram()
	if err != nil {
		return err
	}
	if err := pass.SetViewport(float32(sc.X), float32(sc.Y), float32(sc.Width), float32(sc.Height), 0, 1); err != nil {
		return err
	}
	dc := newDrawContext(s.ctx, session, pass, name+"_clear", color, depth)
	dc.program = cp
	dc.writeColor = policy.Color
	dc.writeDepth = policy.Depth
	s.mu.Lock()
	dc.onDraw = s.onDraw
	s.mu.Unlock()
	v := policy.Value
	dc.SetUniform("u_clearColor", mgl32.Vec4{float32(v.R), float32(v.G), float32(v.B), float32(v.A)})
	return dc.Draw(3)
}

func loadOp(clear bool) gputypes.LoadOp {
	if clear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}
