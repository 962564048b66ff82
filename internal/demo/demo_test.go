package demo

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"testing/fstest"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/input"
)

func newTestContext(t *testing.T) *gg3d.Context {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		t.Fatal("no noop adapter")
	}
	dev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	gc, err := gg3d.NewContext(dev.Device, dev.Queue, gg3d.WithAdapter(adapters[0].Adapter))
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() {
		gc.Close()
		dev.Device.Destroy()
		instance.Destroy()
	})
	return gc
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 64, 32
	cfg.ShadowMapSize = 32
	cfg.TextureSize = 16
	return cfg
}

func held(keys ...gpucontext.Key) input.State {
	st := input.State{Held: map[gpucontext.Key]bool{}}
	for _, k := range keys {
		st.Held[k] = true
	}
	return st
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-5 }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ShadowCamera.Distance != 6 || cfg.ShadowCamera.Rotation != (mgl32.Vec3{-Tau / 12, Tau / 8, 0}) {
		t.Errorf("shadow camera = %+v", cfg.ShadowCamera)
	}
	if cfg.ShadowMapSize != 1024 || cfg.ShadowFormat != gputypes.TextureFormatRGBA16Float {
		t.Errorf("shadow map = %d %v, want 1024 RGBA16Float", cfg.ShadowMapSize, cfg.ShadowFormat)
	}
	if len(cfg.CubePositions) != 4 || cfg.PlaneScale != 10 {
		t.Errorf("%d cubes on a plane of scale %v, want 4 and 10", len(cfg.CubePositions), cfg.PlaneScale)
	}
	if cfg.TextureCamera.Distance != 2 {
		t.Errorf("texture camera distance = %v, want 2", cfg.TextureCamera.Distance)
	}

	paths := CheckerboardPaths()
	if len(paths) != 9 || paths[0] != "checkerboard512.png" || paths[8] != "checkerboard2.png" {
		t.Errorf("CheckerboardPaths() = %v", paths)
	}
}

func TestParseSceneKind(t *testing.T) {
	for _, name := range []string{"shadow", "texture"} {
		if k, err := ParseSceneKind(name); err != nil || string(k) != name {
			t.Errorf("ParseSceneKind(%q) = %q, %v", name, k, err)
		}
	}
	if _, err := ParseSceneKind("teapot"); err == nil {
		t.Error("ParseSceneKind(teapot) succeeded")
	}

	cfg := smallConfig()
	cfg.Scene = "teapot"
	if _, err := New(context.Background(), newTestContext(t), cfg); err == nil {
		t.Error("New with an unknown scene succeeded")
	}
}

func TestShadowSceneFrame(t *testing.T) {
	gc := newTestContext(t)
	s, err := NewShadowScene(gc, smallConfig())
	if err != nil {
		t.Fatalf("NewShadowScene failed: %v", err)
	}
	defer s.Close()

	target, err := gg3d.NewRenderTarget(gc, 64, 32)
	if err != nil {
		t.Fatalf("NewRenderTarget failed: %v", err)
	}
	defer target.Destroy()

	img, err := s.Capture(target)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Errorf("captured %v, want 64x32", img.Bounds())
	}

	stats := s.Sequencer().Stats()
	want := []struct {
		name     string
		draws    int
		vertices uint64
	}{
		{"shadow", 5, 6 + 4*36},
		{"blit", 1, 6},
		{"main", 5, 6 + 4*36},
	}
	if len(stats.Passes) != len(want) {
		t.Fatalf("got %d passes, want %d", len(stats.Passes), len(want))
	}
	for i, w := range want {
		p := stats.Passes[i]
		if p.Name != w.name || p.Draws != w.draws || p.Vertices != w.vertices {
			t.Errorf("pass %d = %+v, want %s with %d draws and %d vertices", i, p, w.name, w.draws, w.vertices)
		}
	}
}

func TestShadowSceneResize(t *testing.T) {
	gc := newTestContext(t)
	s, err := NewShadowScene(gc, smallConfig())
	if err != nil {
		t.Fatalf("NewShadowScene failed: %v", err)
	}
	defer s.Close()

	target, err := gg3d.NewRenderTarget(gc, 80, 40)
	if err != nil {
		t.Fatalf("NewRenderTarget failed: %v", err)
	}
	defer target.Destroy()
	if err := s.Render(target); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	passes := s.Sequencer().Passes()
	blit, main := passes[1], passes[2]
	if blit.Viewport != (gg3d.Rect{Width: 40, Height: 40}) {
		t.Errorf("blit viewport = %+v, want the left half", blit.Viewport)
	}
	if main.Viewport != (gg3d.Rect{X: 40, Width: 40, Height: 40}) || *main.Scissor != main.Viewport {
		t.Errorf("main viewport = %+v scissor = %+v, want the right half", main.Viewport, *main.Scissor)
	}
}

func TestShadowSceneControls(t *testing.T) {
	gc := newTestContext(t)
	cfg := smallConfig()
	s, err := NewShadowScene(gc, cfg)
	if err != nil {
		t.Fatalf("NewShadowScene failed: %v", err)
	}
	defer s.Close()

	start := s.State()
	s.Update(1, held(gpucontext.KeyLeft, gpucontext.KeyDown, gpucontext.KeyPageDown))
	got := s.State().Camera
	if !near(got.Rotation[1], start.Camera.Rotation[1]+cfg.CameraSpeed) {
		t.Errorf("yaw = %v, want %v", got.Rotation[1], start.Camera.Rotation[1]+cfg.CameraSpeed)
	}
	if !near(got.Rotation[0], start.Camera.Rotation[0]+cfg.CameraSpeed) {
		t.Errorf("pitch = %v, want %v", got.Rotation[0], start.Camera.Rotation[0]+cfg.CameraSpeed)
	}
	if !near(got.Distance, start.Camera.Distance+cfg.ZoomSpeed) {
		t.Errorf("distance = %v, want %v", got.Distance, start.Camera.Distance+cfg.ZoomSpeed)
	}

	before := s.State().Light.Direction
	s.Update(0.5, held(gpucontext.KeyD))
	want := mgl32.Rotate3DY(cfg.LightSpeed * 0.5).Mul3x1(before)
	if !s.State().Light.Direction.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("light = %v, want %v", s.State().Light.Direction, want)
	}

	wheel := held()
	wheel.Wheel = -120
	for range 100 {
		s.Update(0, wheel)
	}
	if d := s.State().Camera.Distance; d != cfg.MinDistance {
		t.Errorf("distance after zooming in = %v, want the minimum %v", d, cfg.MinDistance)
	}

	main := s.Sequencer().Passes()[2]
	if main.View != s.State().Camera.View() {
		t.Error("main pass view matrix not refreshed by Update")
	}
}

func pngFile(t *testing.T, img image.Image) *fstest.MapFile {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return &fstest.MapFile{Data: buf.Bytes()}
}

func TestTextureSceneGenerated(t *testing.T) {
	gc := newTestContext(t)
	cfg := smallConfig()
	cfg.Scene = SceneTexture
	scene, err := New(context.Background(), gc, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer scene.Close()
	s := scene.(*TextureScene)

	if s.Loader() != nil {
		t.Error("generated texture has a loader")
	}
	if s.Texture().MipLevels() != 5 {
		t.Errorf("MipLevels() = %d, want 5 for 16x16", s.Texture().MipLevels())
	}

	target, err := gg3d.NewRenderTarget(gc, 32, 32)
	if err != nil {
		t.Fatalf("NewRenderTarget failed: %v", err)
	}
	defer target.Destroy()
	if _, err := s.Capture(target); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if p := s.Sequencer().Stats().Passes; len(p) != 1 || p[0].Vertices != 6 {
		t.Errorf("stats = %+v, want one pass with 6 vertices", p)
	}
}

func TestTextureSceneLoadsAndReloads(t *testing.T) {
	gc := newTestContext(t)
	cfg := smallConfig()
	cfg.TextureFS = fstest.MapFS{
		"l0.png": pngFile(t, Checkerboard(8, 2, color.RGBA{R: 255, A: 255})),
		"l1.png": pngFile(t, Checkerboard(4, 2, color.RGBA{G: 255, A: 255})),
	}
	cfg.TexturePaths = []string{"l0.png", "l1.png"}
	cfg.GenerateMips = true

	s, err := NewTextureScene(context.Background(), gc, cfg)
	if err != nil {
		t.Fatalf("NewTextureScene failed: %v", err)
	}
	defer s.Close()
	if s.Texture().MipLevels() != 4 {
		t.Fatalf("MipLevels() = %d, want the full chain of 4", s.Texture().MipLevels())
	}

	target, err := gg3d.NewRenderTarget(gc, 16, 16)
	if err != nil {
		t.Fatalf("NewRenderTarget failed: %v", err)
	}
	defer target.Destroy()

	if err := s.Loader().Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := s.Render(target); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !s.Loader().Done() {
		t.Fatal("loader not done after a frame")
	}

	first := s.Loader()
	s.Update(0, held(gpucontext.KeyR))
	s.Update(0, held(gpucontext.KeyR))
	if s.Loader() == first {
		t.Fatal("pressing R did not reload")
	}
	second := s.Loader()
	s.Update(0, held())
	if s.Loader() != second {
		t.Error("holding R reloaded more than once")
	}

	if err := s.Loader().Wait(context.Background()); err != nil {
		t.Fatalf("reload Wait failed: %v", err)
	}
	if _, err := s.Capture(target); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if hits := s.ImageCache().Stats().Hits; hits != 2 {
		t.Errorf("cache hits = %d, want 2 on reload", hits)
	}
}

func TestCheckerboard(t *testing.T) {
	on := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	img := Checkerboard(16, 4, on)
	if img.RGBAAt(0, 0) != on || img.RGBAAt(3, 3) != on {
		t.Error("first square is not on")
	}
	if img.RGBAAt(4, 0) != (color.RGBA{A: 255}) {
		t.Errorf("second square = %v, want black", img.RGBAAt(4, 0))
	}
	if img.RGBAAt(4, 4) != on {
		t.Error("diagonal square is not on")
	}

	tiny := Checkerboard(2, 8, on)
	if tiny.RGBAAt(0, 0) != on || tiny.RGBAAt(1, 0) == on {
		t.Error("tiny board does not alternate per texel")
	}
}
