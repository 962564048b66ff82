package gg3d

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestDefaultContextOptions(t *testing.T) {
	o := defaultOptions()
	if o.colorFormat != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("colorFormat = %v, want RGBA8Unorm", o.colorFormat)
	}
	if o.depthFormat != gputypes.TextureFormatDepth32Float {
		t.Errorf("depthFormat = %v, want Depth32Float", o.depthFormat)
	}
	if o.adapter != nil {
		t.Error("adapter should be nil by default")
	}
}

func TestContextFormatOptions(t *testing.T) {
	tests := []struct {
		name      string
		opt       ContextOption
		wantColor gputypes.TextureFormat
		wantDepth gputypes.TextureFormat
	}{
		{"color", WithColorFormat(gputypes.TextureFormatBGRA8Unorm),
			gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatDepth32Float},
		{"undefined color ignored", WithColorFormat(gputypes.TextureFormatUndefined),
			gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatDepth32Float},
		{"depth", WithDepthFormat(gputypes.TextureFormatDepth24PlusStencil8),
			gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatDepth24PlusStencil8},
		{"undefined depth ignored", WithDepthFormat(gputypes.TextureFormatUndefined),
			gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatDepth32Float},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			if o.colorFormat != tt.wantColor {
				t.Errorf("colorFormat = %v, want %v", o.colorFormat, tt.wantColor)
			}
			if o.depthFormat != tt.wantDepth {
				t.Errorf("depthFormat = %v, want %v", o.depthFormat, tt.wantDepth)
			}
		})
	}
}

func TestWithLimits(t *testing.T) {
	o := defaultOptions()
	limits := gputypes.DefaultLimits()
	limits.MaxTextureDimension2D = 64
	WithLimits(limits)(&o)
	if o.limits.MaxTextureDimension2D != 64 {
		t.Errorf("MaxTextureDimension2D = %d, want 64", o.limits.MaxTextureDimension2D)
	}
}

func TestContextAppliesOptions(t *testing.T) {
	ctx, _ := newTestContext(t, WithColorFormat(gputypes.TextureFormatBGRA8Unorm))
	if got := ctx.ColorFormat(); got != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("ColorFormat() = %v, want BGRA8Unorm", got)
	}
	if got := ctx.DepthFormat(); got != gputypes.TextureFormatDepth32Float {
		t.Errorf("DepthFormat() = %v, want Depth32Float", got)
	}
}

func TestTargetOptions(t *testing.T) {
	ctx, _ := newTestContext(t)

	rt, err := NewRenderTarget(ctx, 4, 4,
		WithTargetFormat(gputypes.TextureFormatRGBA16Float),
		WithoutDepth(),
		WithTargetLabel("shadow_map"))
	if err != nil {
		t.Fatalf("NewRenderTarget: %v", err)
	}
	defer rt.Destroy()

	if rt.colorFormat != gputypes.TextureFormatRGBA16Float {
		t.Errorf("colorFormat = %v, want RGBA16Float", rt.colorFormat)
	}
	if rt.withDepth {
		t.Error("WithoutDepth target still has a depth attachment")
	}
	if rt.label != "shadow_map" {
		t.Errorf("label = %q, want shadow_map", rt.label)
	}
}
