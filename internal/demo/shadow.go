package demo

import (
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/input"
)

// ShadowScene is a plane with four cubes lit by a directional light. The
// left half of the surface shows the shadow map, the right half the lit
// scene.
type ShadowScene struct {
	cfg   Config
	state gg3d.SceneState

	depth, blit, lit *gg3d.Program
	shadowMap        *gg3d.RenderTarget

	plane *gg3d.Mesh
	cubes []*gg3d.Mesh
	quad  *gg3d.Mesh

	shadowPass, blitPass, mainPass *gg3d.Pass
	seq                            *gg3d.FrameSequencer
}

// NewShadowScene builds the scene and its three passes.
func NewShadowScene(gc *gg3d.Context, cfg Config) (*ShadowScene, error) {
	s := &ShadowScene{
		cfg: cfg,
		state: gg3d.SceneState{
			Camera: cfg.ShadowCamera,
			Light:  gg3d.Light{Direction: cfg.Light},
			Shadow: cfg.Shadow,
		},
	}
	if err := s.build(gc); err != nil {
		s.Close()
		return nil, err
	}
	s.Resize(cfg.Width, cfg.Height)
	gg3d.Logger().Info("demo: shadow scene ready",
		"shadowMap", cfg.ShadowMapSize, "format", cfg.ShadowFormat, "cubes", len(s.cubes))
	return s, nil
}

func (s *ShadowScene) build(gc *gg3d.Context) error {
	var err error
	if s.depth, err = gg3d.DepthProgram(gc); err != nil {
		return err
	}
	if s.blit, err = gg3d.BlitProgram(gc); err != nil {
		return err
	}
	if s.lit, err = gg3d.ShadowedDiffuseProgram(gc); err != nil {
		return err
	}

	s.shadowMap, err = gg3d.NewRenderTarget(gc, s.cfg.ShadowMapSize, s.cfg.ShadowMapSize,
		gg3d.WithTargetFormat(s.cfg.ShadowFormat), gg3d.WithTargetLabel("shadow_map"))
	if err != nil {
		return fmt.Errorf("shadow map: %w", err)
	}

	if s.plane, err = gg3d.NewPlane(gc); err != nil {
		return err
	}
	p := s.cfg.PlaneScale
	s.plane.Scale = mgl32.Vec3{p, 1, p}
	for _, pos := range s.cfg.CubePositions {
		cube, err := gg3d.NewCube(gc)
		if err != nil {
			return err
		}
		cube.Position = pos
		s.cubes = append(s.cubes, cube)
	}
	if s.quad, err = gg3d.NewQuad(gc); err != nil {
		return err
	}
	s.quad.Texture = s.shadowMap

	scene := append([]*gg3d.Mesh{s.plane}, s.cubes...)
	s.shadowPass = &gg3d.Pass{
		Name: "shadow", Kind: gg3d.PassShadow, Target: s.shadowMap, Program: s.depth,
		Meshes: scene,
	}
	s.blitPass = &gg3d.Pass{
		Name: "blit", Kind: gg3d.PassBlit, Program: s.blit,
		Meshes: []*gg3d.Mesh{s.quad},
	}
	s.mainPass = &gg3d.Pass{
		Name: "main", Kind: gg3d.PassMain, Program: s.lit,
		Uniforms: map[string]any{},
		Textures: map[string]gg3d.TextureSource{"u_shadowMap": s.shadowMap},
		Meshes:   scene,
	}
	s.seq, err = gg3d.NewFrameSequencer(gc, s.shadowPass, s.blitPass, s.mainPass)
	return err
}

// Resize splits the surface into the shadow map view on the left and the
// scene on the right.
func (s *ShadowScene) Resize(width, height uint32) {
	s.cfg.Width, s.cfg.Height = width, height
	half := width / 2
	left := gg3d.Rect{Width: half, Height: height}
	right := gg3d.Rect{X: half, Width: width - half, Height: height}
	s.blitPass.Viewport, s.blitPass.Scissor = left, &left
	s.mainPass.Viewport, s.mainPass.Scissor = right, &right
	s.refresh()
}

// Update applies camera and light controls.
func (s *ShadowScene) Update(dt float64, in input.State) {
	d := float32(dt)
	steerCamera(&s.state.Camera, in, &s.cfg, d)
	steerLight(&s.state, in, &s.cfg, d)
	s.state.Elapsed += dt
	s.refresh()
}

// refresh copies the scene state into the passes.
func (s *ShadowScene) refresh() {
	s.shadowPass.Projection = s.state.LightProjection()
	s.shadowPass.View = s.state.LightView()

	aspect := float32(1)
	if vp := s.mainPass.Viewport; vp.Height > 0 {
		aspect = float32(vp.Width) / float32(vp.Height)
	}
	s.mainPass.Projection = s.state.Camera.Projection(aspect)
	s.mainPass.View = s.state.Camera.View()
	s.mainPass.Uniforms["u_lightDirection"] = s.state.Light.Direction.Normalize()
	s.mainPass.Uniforms["u_shadowMatrix"] = s.state.ShadowMatrix()
}

// Render draws the shadow, blit and main passes.
func (s *ShadowScene) Render(surface gg3d.Surface) error {
	if w, h := surface.Size(); w != s.cfg.Width || h != s.cfg.Height {
		s.Resize(w, h)
	}
	return s.seq.RenderFrame(surface)
}

// Capture renders a frame into target and reads it back.
func (s *ShadowScene) Capture(target *gg3d.RenderTarget) (*image.RGBA, error) {
	if w, h := target.Size(); w != s.cfg.Width || h != s.cfg.Height {
		s.Resize(w, h)
	}
	return s.seq.RenderAndCapture(target)
}

// State returns the camera and light.
func (s *ShadowScene) State() gg3d.SceneState { return s.state }

func (s *ShadowScene) Sequencer() *gg3d.FrameSequencer { return s.seq }

// Close releases every resource in reverse creation order.
func (s *ShadowScene) Close() {
	if s.quad != nil {
		s.quad.Destroy()
	}
	for i := len(s.cubes) - 1; i >= 0; i-- {
		s.cubes[i].Destroy()
	}
	s.cubes = nil
	if s.plane != nil {
		s.plane.Destroy()
	}
	if s.shadowMap != nil {
		s.shadowMap.Destroy()
	}
	for _, p := range []*gg3d.Program{s.lit, s.blit, s.depth} {
		if p != nil {
			p.Destroy()
		}
	}
}
