package demo

import (
	"context"
	"image"
	"image/color"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/input"
	"github.com/gogpu/gg3d/mipload"
)

// TextureScene is a textured quad seen by an orbiting camera. Its mip
// levels load in the background and show the placeholder color until
// they arrive.
type TextureScene struct {
	ctx    context.Context
	cfg    Config
	camera gg3d.Camera

	program *gg3d.Program
	texture *gg3d.Texture
	loader  *mipload.Loader
	cache   *mipload.ImageCache
	quad    *gg3d.Mesh

	reloadHeld bool

	pass *gg3d.Pass
	seq  *gg3d.FrameSequencer
}

// NewTextureScene builds the scene. With cfg.TexturePaths set the levels
// are decoded from cfg.TextureFS; otherwise a checkerboard chain is
// generated in place.
func NewTextureScene(ctx context.Context, gc *gg3d.Context, cfg Config) (*TextureScene, error) {
	s := &TextureScene{ctx: ctx, cfg: cfg, camera: cfg.TextureCamera}
	if err := s.build(ctx, gc); err != nil {
		s.Close()
		return nil, err
	}
	s.Resize(cfg.Width, cfg.Height)
	gg3d.Logger().Info("demo: texture scene ready",
		"levels", s.texture.MipLevels(), "files", len(cfg.TexturePaths))
	return s, nil
}

func (s *TextureScene) build(ctx context.Context, gc *gg3d.Context) error {
	var err error
	if s.program, err = gg3d.TextureProgram(gc); err != nil {
		return err
	}

	if len(s.cfg.TexturePaths) > 0 && s.cfg.TextureFS != nil {
		s.cache = mipload.NewImageCache(s.cfg.TextureCacheMiB << 20)
		s.loader = s.newLoader()
		if s.texture, err = s.loader.NewTexture(gc, "checkerboard"); err != nil {
			return err
		}
		s.loader.Start(ctx)
	} else {
		if s.texture, err = checkerboardTexture(gc, s.cfg.TextureSize); err != nil {
			return err
		}
	}

	data := gg3d.QuadData()
	data.ClipSpace = false
	if s.quad, err = gg3d.NewMesh(gc, data); err != nil {
		return err
	}
	s.quad.Texture = s.texture

	s.pass = &gg3d.Pass{
		Name: "main", Kind: gg3d.PassMain, Program: s.program,
		Meshes: []*gg3d.Mesh{s.quad},
	}
	s.seq, err = gg3d.NewFrameSequencer(gc, s.pass)
	return err
}

func (s *TextureScene) newLoader() *mipload.Loader {
	opts := []mipload.Option{
		mipload.WithConcurrency(s.cfg.DecodeWorkers),
		mipload.WithCache(s.cache),
	}
	if s.cfg.GenerateMips {
		opts = append(opts, mipload.WithGenerateMips())
	}
	return mipload.New(s.cfg.TextureFS, s.cfg.TexturePaths, opts...)
}

// Reload resets every level to the placeholder and loads the files again.
// Decoded images come from the scene's cache when they are still there.
// Generated textures are left alone.
func (s *TextureScene) Reload() error {
	if s.loader == nil {
		return nil
	}
	w, h := s.texture.Size()
	if err := s.texture.Allocate(w, h, s.texture.MipLevels()); err != nil {
		return err
	}
	s.loader = s.newLoader()
	s.loader.Start(s.ctx)
	return nil
}

// Resize sets the viewport to the whole surface.
func (s *TextureScene) Resize(width, height uint32) {
	s.cfg.Width, s.cfg.Height = width, height
	s.pass.Viewport = gg3d.Rect{Width: width, Height: height}
	s.refresh()
}

// Update applies camera controls. Pressing R reloads the texture.
func (s *TextureScene) Update(dt float64, in input.State) {
	steerCamera(&s.camera, in, &s.cfg, float32(dt))
	held := in.IsHeld(gpucontext.KeyR)
	if held && !s.reloadHeld {
		if err := s.Reload(); err != nil {
			gg3d.Logger().Warn("demo: texture reload failed", "err", err)
		}
	}
	s.reloadHeld = held
	s.refresh()
}

func (s *TextureScene) refresh() {
	aspect := float32(1)
	if s.cfg.Height > 0 {
		aspect = float32(s.cfg.Width) / float32(s.cfg.Height)
	}
	s.pass.Projection = s.camera.Projection(aspect)
	s.pass.View = s.camera.View()
}

// applyLevels uploads levels decoded since the last frame.
func (s *TextureScene) applyLevels() error {
	if s.loader == nil || s.loader.Done() {
		return nil
	}
	n, err := s.loader.Apply(s.texture)
	if n > 0 {
		gg3d.Logger().Debug("demo: texture levels applied", "count", n, "done", s.loader.Done())
	}
	return err
}

// Render uploads any decoded levels, then draws the quad.
func (s *TextureScene) Render(surface gg3d.Surface) error {
	if err := s.applyLevels(); err != nil {
		return err
	}
	if w, h := surface.Size(); w != s.cfg.Width || h != s.cfg.Height {
		s.Resize(w, h)
	}
	return s.seq.RenderFrame(surface)
}

// Capture renders a frame into target and reads it back.
func (s *TextureScene) Capture(target *gg3d.RenderTarget) (*image.RGBA, error) {
	if err := s.applyLevels(); err != nil {
		return nil, err
	}
	if w, h := target.Size(); w != s.cfg.Width || h != s.cfg.Height {
		s.Resize(w, h)
	}
	return s.seq.RenderAndCapture(target)
}

// ImageCache returns the decoded image cache, or nil for a generated
// texture.
func (s *TextureScene) ImageCache() *mipload.ImageCache { return s.cache }

// Loader returns the level loader, or nil for a generated texture.
func (s *TextureScene) Loader() *mipload.Loader { return s.loader }

// Texture returns the quad's texture.
func (s *TextureScene) Texture() *gg3d.Texture { return s.texture }

// Camera returns the current camera.
func (s *TextureScene) Camera() gg3d.Camera { return s.camera }

func (s *TextureScene) Sequencer() *gg3d.FrameSequencer { return s.seq }

// Close releases the scene's resources. Decoding still in flight finishes
// in the background and is discarded.
func (s *TextureScene) Close() {
	if s.quad != nil {
		s.quad.Destroy()
	}
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.program != nil {
		s.program.Destroy()
	}
}

// checkerboardTexture builds a full mip chain of checkerboards, each level
// with eight squares per side, tinted by level so minification is visible.
func checkerboardTexture(gc *gg3d.Context, size uint32) (*gg3d.Texture, error) {
	tex, err := gg3d.NewTexture(gc, "checkerboard", size, size, 0, gg3d.DefaultSamplerConfig())
	if err != nil {
		return nil, err
	}
	for level := range tex.MipLevels() {
		w, _ := tex.LevelSize(level)
		if err := tex.WriteLevel(level, Checkerboard(int(w), 8, levelTint(level))); err != nil {
			tex.Destroy()
			return nil, err
		}
	}
	return tex, nil
}

var tints = []color.RGBA{
	{R: 255, G: 255, B: 255, A: 255},
	{R: 255, G: 96, B: 96, A: 255},
	{R: 96, G: 255, B: 96, A: 255},
	{R: 96, G: 96, B: 255, A: 255},
	{R: 255, G: 255, B: 96, A: 255},
}

func levelTint(level uint32) color.RGBA { return tints[int(level)%len(tints)] }

// Checkerboard returns a size x size image of alternating on and black
// squares, cells squares per side. Images smaller than cells fall back to
// one texel per square.
func Checkerboard(size, cells int, on color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := max(size/cells, 1)
	off := color.RGBA{A: 255}
	for y := range size {
		for x := range size {
			c := off
			if (x/cell+y/cell)%2 == 0 {
				c = on
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
