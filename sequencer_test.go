package gg3d

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

type shadowScene struct {
	ctx    *Context
	shadow *RenderTarget
	screen *RenderTarget
	passes []*Pass
	cube   *Mesh
}

func newShadowScene(t *testing.T, ctx *Context) *shadowScene {
	t.Helper()
	depth, err := DepthProgram(ctx)
	if err != nil {
		t.Fatalf("DepthProgram failed: %v", err)
	}
	t.Cleanup(depth.Destroy)
	blit, err := BlitProgram(ctx)
	if err != nil {
		t.Fatalf("BlitProgram failed: %v", err)
	}
	t.Cleanup(blit.Destroy)
	lit, err := ShadowedDiffuseProgram(ctx)
	if err != nil {
		t.Fatalf("ShadowedDiffuseProgram failed: %v", err)
	}
	t.Cleanup(lit.Destroy)

	cube, err := NewCube(ctx)
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	t.Cleanup(cube.Destroy)
	quad, err := NewQuad(ctx)
	if err != nil {
		t.Fatalf("NewQuad failed: %v", err)
	}
	t.Cleanup(quad.Destroy)

	s := &shadowScene{
		ctx:    ctx,
		shadow: mustTarget(t, ctx, 32, 32, WithTargetFormat(gputypes.TextureFormatRGBA16Float)),
		screen: mustTarget(t, ctx, 64, 32),
		cube:   cube,
	}
	quad.Texture = s.shadow

	state := SceneState{
		Camera: Camera{Rotation: mgl32.Vec3{-0.5, 0.8, 0}, Distance: 6, Fovy: math.Pi / 2, Near: 0.1, Far: 100},
		Light:  Light{Direction: mgl32.Vec3{0.1, 1, 0.5}},
		Shadow: ShadowExtent{HalfSize: 4, Near: 0.1, Far: 100, Distance: 10},
	}
	s.passes = []*Pass{
		{
			Name: "shadow", Kind: PassShadow, Target: s.shadow, Program: depth,
			Projection: state.LightProjection(), View: state.LightView(),
			Meshes: []*Mesh{cube},
		},
		{
			Name: "blit", Kind: PassBlit, Program: blit,
			Scissor: &Rect{Width: 32, Height: 32}, Viewport: Rect{Width: 32, Height: 32},
			Meshes: []*Mesh{quad},
		},
		{
			Name: "main", Kind: PassMain, Program: lit,
			Scissor: &Rect{X: 32, Width: 32, Height: 32}, Viewport: Rect{X: 32, Width: 32, Height: 32},
			Projection: state.Camera.Projection(1), View: state.Camera.View(),
			Uniforms: map[string]any{
				"u_lightDirection": state.Light.Direction,
				"u_shadowMatrix":   state.ShadowMatrix(),
			},
			Textures: map[string]TextureSource{"u_shadowMap": s.shadow},
			Meshes:   []*Mesh{cube},
		},
	}
	return s
}

func TestFrameSequencerStates(t *testing.T) {
	ctx, g := newTestContext(t)
	s := newShadowScene(t, ctx)

	seq, err := NewFrameSequencer(ctx, s.passes...)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	if seq.State() != StateIdle {
		t.Fatalf("initial state = %v, want Idle", seq.State())
	}

	var got []SequencerState
	seq.OnTransition(func(_, to SequencerState) { got = append(got, to) })

	submits := g.queue.submits.Load()
	if err := seq.RenderFrame(s.screen); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	want := []SequencerState{StateShadowPass, StateBlitPass, StateMainPass, StateDone}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transitions = %v, want %v", got, want)
	}
	if n := g.queue.submits.Load() - submits; n != 1 {
		t.Errorf("frame submitted %d times, want 1", n)
	}

	got = nil
	if err := seq.RenderFrame(s.screen); err != nil {
		t.Fatalf("second RenderFrame failed: %v", err)
	}
	want = append([]SequencerState{StateIdle}, want...)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("second frame transitions = %v, want %v", got, want)
	}
	if st := seq.Stats(); st.Frame != 2 {
		t.Errorf("Stats().Frame = %d, want 2", st.Frame)
	}
}

func TestFrameSequencerDrawOrder(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newShadowScene(t, ctx)
	seq, err := NewFrameSequencer(ctx, s.passes...)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}

	var draws []DrawInfo
	seq.OnDraw(func(d DrawInfo) { draws = append(draws, d) })
	if err := seq.RenderFrame(s.screen); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}

	var passes []string
	for _, d := range draws {
		if d.Program == "clear" {
			continue
		}
		passes = append(passes, d.Pass+"/"+d.Program)
	}
	want := []string{"shadow/depth", "blit/blit", "main/shadowed"}
	if !reflect.DeepEqual(passes, want) {
		t.Fatalf("draw order = %v, want %v", passes, want)
	}

	main := draws[len(draws)-1]
	if !reflect.DeepEqual(main.Textures, []string{"u_shadowMap"}) {
		t.Errorf("main pass textures = %v, want [u_shadowMap]", main.Textures)
	}
	if _, ok := main.Uniforms["u_normalMatrix"]; !ok {
		t.Error("shadowed draw missing u_normalMatrix")
	}
	if _, ok := main.Uniforms["u_shadowMatrix"]; !ok {
		t.Error("shadowed draw missing pass uniform u_shadowMatrix")
	}

	stats := seq.Stats()
	if len(stats.Passes) != 3 {
		t.Fatalf("Stats().Passes = %d, want 3", len(stats.Passes))
	}
	for _, ps := range stats.Passes {
		if ps.Draws != 1 {
			t.Errorf("pass %s: %d draws, want 1", ps.Name, ps.Draws)
		}
	}
	if stats.Passes[0].Vertices != 36 || stats.Passes[1].Vertices != 6 {
		t.Errorf("vertex counts = %d, %d, want 36, 6", stats.Passes[0].Vertices, stats.Passes[1].Vertices)
	}
}

func TestFrameSequencerScissoredClear(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newShadowScene(t, ctx)
	seq, err := NewFrameSequencer(ctx, s.passes...)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	clears := map[string]int{}
	seq.OnDraw(func(d DrawInfo) {
		if d.Program == "clear" {
			clears[d.Pass]++
		}
	})
	if err := seq.RenderFrame(s.screen); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	want := map[string]int{"blit_clear": 1, "main_clear": 1}
	if !reflect.DeepEqual(clears, want) {
		t.Errorf("scissored clears = %v, want %v", clears, want)
	}
}

func TestFrameSequencerCachesPipelines(t *testing.T) {
	ctx, g := newTestContext(t)
	s := newShadowScene(t, ctx)
	seq, err := NewFrameSequencer(ctx, s.passes...)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	if err := seq.RenderFrame(s.screen); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	created := g.device.pipelines.Load()
	if err := seq.RenderFrame(s.screen); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	if g.device.pipelines.Load() != created {
		t.Errorf("second frame created %d pipelines", g.device.pipelines.Load()-created)
	}
	if hits, _ := s.passes[0].Program.PipelineStats(); hits == 0 {
		t.Error("depth program pipeline cache was never hit")
	}
}

func TestFrameSequencerRejectsBadPasses(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newShadowScene(t, ctx)

	if _, err := NewFrameSequencer(ctx, s.passes[2], s.passes[0]); !errors.Is(err, ErrPassOrder) {
		t.Errorf("Main before Shadow: err = %v, want ErrPassOrder", err)
	}

	loop := *s.passes[0]
	loop.Textures = map[string]TextureSource{"u_texture": s.shadow}
	seq, err := NewFrameSequencer(ctx, &loop)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	if err := seq.RenderFrame(s.screen); !errors.Is(err, ErrFeedbackLoop) {
		t.Errorf("feedback loop: err = %v, want ErrFeedbackLoop", err)
	}
	if seq.State() != StateIdle {
		t.Errorf("state after rejected frame = %v, want Idle", seq.State())
	}

	wide := *s.passes[2]
	sw, sh := s.screen.Size()
	wide.Scissor = &Rect{X: sw / 2, Width: sw/2 + 1, Height: sh}
	seq, err = NewFrameSequencer(ctx, &wide)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	if err := seq.RenderFrame(s.screen); !errors.Is(err, ErrScissorBounds) {
		t.Errorf("scissor past the right edge: err = %v, want ErrScissorBounds", err)
	}
	if seq.State() != StateIdle {
		t.Errorf("state after scissor rejection = %v, want Idle", seq.State())
	}

	noProgram := &Pass{Name: "empty", Kind: PassMain}
	seq, err = NewFrameSequencer(ctx, noProgram)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	if err := seq.RenderFrame(s.screen); !errors.Is(err, ErrNoProgram) {
		t.Errorf("no program: err = %v, want ErrNoProgram", err)
	}
}

func TestFrameSequencerFailureReturnsToIdle(t *testing.T) {
	ctx, g := newTestContext(t)
	s := newShadowScene(t, ctx)
	s.passes[2].Uniforms["u_lightDirection"] = mgl32.Vec4{1, 1, 1, 1}

	seq, err := NewFrameSequencer(ctx, s.passes...)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	submits := g.queue.submits.Load()
	if err := seq.RenderFrame(s.screen); err == nil {
		t.Fatal("RenderFrame accepted a vec4 for a vec3 uniform")
	}
	if seq.State() != StateIdle {
		t.Errorf("state = %v, want Idle", seq.State())
	}
	if g.queue.submits.Load() != submits {
		t.Error("failed frame was submitted")
	}
}

func TestRenderAndCapture(t *testing.T) {
	ctx, _ := newTestContext(t)
	s := newShadowScene(t, ctx)
	seq, err := NewFrameSequencer(ctx, s.passes...)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	img, err := seq.RenderAndCapture(s.screen)
	if err != nil {
		t.Fatalf("RenderAndCapture failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Errorf("captured %v, want 64x32", b)
	}

	if _, err := seq.RenderAndCapture(s.shadow); !errors.Is(err, ErrUnsupported) {
		t.Errorf("capturing an RGBA16Float target: err = %v, want ErrUnsupported", err)
	}
}

func TestPassKindString(t *testing.T) {
	tests := []struct {
		give fmt.Stringer
		want string
	}{
		{PassShadow, "Shadow"},
		{PassBlit, "Blit"},
		{PassMain, "Main"},
		{StateIdle, "Idle"},
		{StateDone, "Done"},
		{StateMainPass, "MainPass"},
	}
	for _, tt := range tests {
		if got := tt.give.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
