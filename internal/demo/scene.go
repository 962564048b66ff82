package demo

import (
	"context"
	"fmt"
	"image"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/input"
)

// Scene is one of the demos, driven by the frame loop.
type Scene interface {
	// Update advances the scene by dt seconds.
	Update(dt float64, in input.State)

	// Render draws a frame into surface.
	Render(surface gg3d.Surface) error

	// Capture renders a frame into target and reads it back.
	Capture(target *gg3d.RenderTarget) (*image.RGBA, error)

	// Resize adapts viewports to a new surface size.
	Resize(width, height uint32)

	Sequencer() *gg3d.FrameSequencer

	Close()
}

// New builds the scene cfg.Scene names. ctx bounds background work such as
// texture decoding.
func New(ctx context.Context, gc *gg3d.Context, cfg Config) (Scene, error) {
	switch cfg.Scene {
	case SceneShadow, "":
		return NewShadowScene(gc, cfg)
	case SceneTexture:
		return NewTextureScene(ctx, gc, cfg)
	}
	return nil, fmt.Errorf("demo: unknown scene %q", cfg.Scene)
}
