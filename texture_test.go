package gg3d

import (
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestMipLevelCount(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 2, 2},
		{512, 512, 10},
		{512, 2, 10},
		{3, 5, 3},
	}
	for _, tt := range tests {
		if got := MipLevelCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevelCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestNewTextureFillsPlaceholder(t *testing.T) {
	ctx, g := newTestContext(t)
	writes := g.queue.writes.Load()

	tex, err := NewTexture(ctx, "checker", 512, 512, 9, DefaultSamplerConfig())
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	defer tex.Destroy()

	if tex.MipLevels() != 9 {
		t.Errorf("MipLevels() = %d, want 9", tex.MipLevels())
	}
	if n := g.queue.writes.Load() - writes; n != 9 {
		t.Errorf("%d level writes, want 9", n)
	}
	if w, h := tex.LevelSize(8); w != 2 || h != 2 {
		t.Errorf("LevelSize(8) = %dx%d, want 2x2", w, h)
	}
	if Placeholder != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("Placeholder = %v, want opaque blue", Placeholder)
	}
}

func TestTextureFullChain(t *testing.T) {
	ctx, _ := newTestContext(t)
	tex, err := NewTexture(ctx, "full", 16, 4, 0, DefaultSamplerConfig())
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	defer tex.Destroy()
	if tex.MipLevels() != 5 {
		t.Errorf("MipLevels() = %d, want 5", tex.MipLevels())
	}
	if w, h := tex.LevelSize(4); w != 1 || h != 1 {
		t.Errorf("LevelSize(4) = %dx%d, want 1x1", w, h)
	}
}

func TestTextureWriteLevel(t *testing.T) {
	ctx, g := newTestContext(t)
	tex, err := NewTexture(ctx, "t", 8, 8, 0, DefaultSamplerConfig())
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	defer tex.Destroy()

	writes := g.queue.writes.Load()
	if err := tex.WriteLevel(1, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Errorf("WriteLevel same size failed: %v", err)
	}
	if err := tex.WriteLevel(0, image.NewGray(image.Rect(0, 0, 3, 3))); err != nil {
		t.Errorf("WriteLevel resampled failed: %v", err)
	}
	if n := g.queue.writes.Load() - writes; n != 2 {
		t.Errorf("%d writes, want 2", n)
	}
	if err := tex.WriteLevel(tex.MipLevels(), image.NewRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Error("WriteLevel past the last level succeeded")
	}
}

func TestTextureSetSampler(t *testing.T) {
	ctx, g := newTestContext(t)
	tex, err := NewTexture(ctx, "t", 4, 4, 1, DefaultSamplerConfig())
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	defer tex.Destroy()

	before := g.device.samplers.Load()
	cfg := DefaultSamplerConfig()
	cfg.MinFilter = gputypes.FilterModeLinear
	cfg.MipmapFilter = gputypes.FilterModeLinear
	if err := tex.SetSampler(cfg); err != nil {
		t.Fatalf("SetSampler failed: %v", err)
	}
	if tex.SamplerConfig() != cfg {
		t.Errorf("SamplerConfig() = %+v, want %+v", tex.SamplerConfig(), cfg)
	}
	if g.device.samplers.Load() != before+1 {
		t.Error("SetSampler did not create a sampler")
	}
}

func TestNewTextureRejectsZeroSize(t *testing.T) {
	ctx, _ := newTestContext(t)
	if _, err := NewTexture(ctx, "zero", 0, 4, 1, DefaultSamplerConfig()); err == nil {
		t.Error("NewTexture(0x4) succeeded")
	}
}
