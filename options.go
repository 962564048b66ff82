package gg3d

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	ctx, err := gg3d.NewContext(device, queue,
//	    gg3d.WithAdapter(adapter),
//	    gg3d.WithColorFormat(gputypes.TextureFormatBGRA8Unorm))
type ContextOption func(*contextOptions)

type contextOptions struct {
	adapter     hal.Adapter
	limits      gputypes.Limits
	colorFormat gputypes.TextureFormat
	depthFormat gputypes.TextureFormat
}

func defaultOptions() contextOptions {
	return contextOptions{
		limits:      gputypes.DefaultLimits(),
		colorFormat: gputypes.TextureFormatRGBA8Unorm,
		depthFormat: gputypes.TextureFormatDepth32Float,
	}
}

// WithAdapter lets the context query format capabilities. Without an
// adapter every format is assumed to be renderable.
func WithAdapter(a hal.Adapter) ContextOption {
	return func(o *contextOptions) {
		o.adapter = a
	}
}

// WithLimits sets the device limits used to validate texture sizes.
func WithLimits(l gputypes.Limits) ContextOption {
	return func(o *contextOptions) {
		o.limits = l
	}
}

// WithColorFormat sets the default color format of render targets.
func WithColorFormat(f gputypes.TextureFormat) ContextOption {
	return func(o *contextOptions) {
		if f != gputypes.TextureFormatUndefined {
			o.colorFormat = f
		}
	}
}

// WithDepthFormat sets the depth format of render targets.
func WithDepthFormat(f gputypes.TextureFormat) ContextOption {
	return func(o *contextOptions) {
		if f != gputypes.TextureFormatUndefined {
			o.depthFormat = f
		}
	}
}

// TargetOption configures a RenderTarget.
type TargetOption func(*targetOptions)

type targetOptions struct {
	colorFormat gputypes.TextureFormat
	depth       bool
	label       string
}

// WithTargetFormat overrides the context's color format for one target.
// The shadow map uses a floating-point format to keep depth precision.
func WithTargetFormat(f gputypes.TextureFormat) TargetOption {
	return func(o *targetOptions) {
		o.colorFormat = f
	}
}

// WithoutDepth creates a color-only target.
func WithoutDepth() TargetOption {
	return func(o *targetOptions) {
		o.depth = false
	}
}

// WithTargetLabel sets the debug label of the target's textures.
func WithTargetLabel(label string) TargetOption {
	return func(o *targetOptions) {
		o.label = label
	}
}
