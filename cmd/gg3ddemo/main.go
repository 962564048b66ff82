// Command gg3ddemo renders the gg3d demo scenes offscreen and saves the
// last frame as a PNG.
//
// Input is scripted: the keys named by -hold stay pressed for the whole
// run, so
//
//	gg3ddemo -scene shadow -frames 120 -hold left,d
//
// orbits the camera and turns the light for two simulated seconds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/clock"
	"github.com/gogpu/gg3d/input"
	"github.com/gogpu/gg3d/internal/demo"
)

type options struct {
	backend  string
	scene    string
	frames   int
	fps      int
	width    int
	height   int
	output   string
	hold     string
	textures string
	mips     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.backend, "backend", "auto", "HAL backend: auto, vulkan, metal, dx12, gles, software or noop")
	flag.StringVar(&opts.scene, "scene", "shadow", "scene to render: shadow or texture")
	flag.IntVar(&opts.frames, "frames", 60, "frames to simulate")
	flag.IntVar(&opts.fps, "fps", 60, "simulated frame rate")
	flag.IntVar(&opts.width, "width", 800, "image width")
	flag.IntVar(&opts.height, "height", 400, "image height")
	flag.StringVar(&opts.output, "output", "gg3d.png", "output file")
	flag.StringVar(&opts.hold, "hold", "", "comma-separated keys held during the run, e.g. left,pagedown,d")
	flag.StringVar(&opts.textures, "textures", "", "directory holding checkerboard512.png down to checkerboard2.png")
	flag.BoolVar(&opts.mips, "mips", false, "generate mip levels missing from -textures")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	gg3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatalf("gg3ddemo: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	kind, err := demo.ParseSceneKind(opts.scene)
	if err != nil {
		return err
	}
	keys, err := parseKeys(opts.hold)
	if err != nil {
		return err
	}
	if opts.width <= 0 || opts.height <= 0 || opts.frames <= 0 || opts.fps <= 0 {
		return errors.New("-width, -height, -frames and -fps must be positive")
	}

	registerBackends()
	gc, err := openBackend(opts.backend)
	if err != nil {
		return err
	}
	defer gc.Close()

	cfg := demo.DefaultConfig()
	cfg.Scene = kind
	cfg.Width, cfg.Height = uint32(opts.width), uint32(opts.height)
	if opts.textures != "" {
		cfg.TextureFS = os.DirFS(opts.textures)
		cfg.TexturePaths = demo.CheckerboardPaths()
		cfg.GenerateMips = opts.mips
	}

	scene, err := demo.New(ctx, gc, cfg)
	if err != nil {
		return err
	}
	defer scene.Close()

	target, err := gg3d.NewRenderTarget(gc, cfg.Width, cfg.Height, gg3d.WithTargetLabel("gg3ddemo"))
	if err != nil {
		return err
	}
	defer target.Destroy()

	in := input.New()
	for _, k := range keys {
		in.KeyDown(k)
	}

	loop := &clock.Loop{
		Clock:    clock.NewFake(time.Now()),
		Interval: time.Second / time.Duration(opts.fps),
		Frames:   opts.frames,
		Logger:   gg3d.Logger(),
	}
	var frame *image.RGBA
	update := func(dt float64) error {
		scene.Update(dt, in.State())
		in.Clear()
		return nil
	}
	render := func() error {
		if loop.Frame() < opts.frames-1 {
			return scene.Render(target)
		}
		if err := waitForTextures(ctx, scene); err != nil {
			return err
		}
		img, err := scene.Capture(target)
		if err != nil {
			return err
		}
		frame = img
		return nil
	}
	if err := loop.Run(ctx, update, render); err != nil {
		return err
	}
	if frame == nil {
		return errors.New("last frame was not captured")
	}

	stats := scene.Sequencer().Stats()
	for _, p := range stats.Passes {
		gg3d.Logger().Debug("gg3ddemo: pass", "name", p.Name, "draws", p.Draws, "vertices", p.Vertices)
	}
	if err := savePNG(opts.output, frame); err != nil {
		return err
	}
	log.Printf("Frame %d saved to %s (%dx%d)\n", stats.Frame, opts.output, opts.width, opts.height)
	return nil
}

// openBackend opens the named backend. When auto-selection fails, for
// instance on a machine without a GPU driver, it falls back to the
// software rasterizer.
func openBackend(name string) (*gg3d.Context, error) {
	gc, err := gg3d.Open(name)
	if err == nil || (name != "auto" && name != "") {
		return gc, err
	}
	gg3d.Logger().Warn("gg3ddemo: preferred backend unavailable, using software", "err", err)
	return gg3d.Open("software")
}

// waitForTextures blocks until files being decoded for the texture scene
// are in, so the saved frame does not show placeholders.
func waitForTextures(ctx context.Context, scene demo.Scene) error {
	ts, ok := scene.(*demo.TextureScene)
	if !ok || ts.Loader() == nil {
		return nil
	}
	return ts.Loader().Wait(ctx)
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
