package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"
)

// Render pass errors.
var (
	// ErrPassEnded is returned when operations are called on an ended pass.
	ErrPassEnded = errors.New("gpu: render pass has already ended")

	// ErrNilPipeline is returned when SetPipeline is called with nil.
	ErrNilPipeline = errors.New("gpu: pipeline is nil")

	// ErrNoPipeline is returned when Draw is called before SetPipeline.
	ErrNoPipeline = errors.New("gpu: no pipeline bound")

	// ErrNilBindGroup is returned when SetBindGroup is called with nil.
	ErrNilBindGroup = errors.New("gpu: bind group is nil")

	// ErrBindGroupIndexOutOfRange is returned when bind group index exceeds maximum.
	ErrBindGroupIndexOutOfRange = errors.New("gpu: bind group index exceeds maximum (3)")

	// ErrNilVertexBuffer is returned when SetVertexBuffer is called with nil.
	ErrNilVertexBuffer = errors.New("gpu: vertex buffer is nil")
)

// RenderPassState represents the state of a render pass encoder.
type RenderPassState int

const (
	// RenderPassStateRecording means the pass is actively recording commands.
	RenderPassStateRecording RenderPassState = iota

	// RenderPassStateEnded means the pass has been ended.
	RenderPassStateEnded
)

// String returns the string representation of RenderPassState.
func (s RenderPassState) String() string {
	switch s {
	case RenderPassStateRecording:
		return "Recording"
	case RenderPassStateEnded:
		return "Ended"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// PassStats counts the work recorded into one render pass.
type PassStats struct {
	Draws    int
	Vertices uint64
}

// RenderPassEncoder records render commands within a render pass.
//
// It wraps a hal.RenderPassEncoder, validates calls that the HAL would
// silently accept, and counts draws. It is NOT safe for concurrent
// recording; the mutex only guards State and Stats readers.
//
// State Machine:
//
//	Recording -> End() -> Ended
type RenderPassEncoder struct {
	mu sync.Mutex

	pass  hal.RenderPassEncoder
	label string
	state RenderPassState

	pipeline hal.RenderPipeline
	stats    PassStats

	// onEnd is called once, after the HAL pass has ended.
	onEnd func(*RenderPassEncoder)
}

// NewRenderPassEncoder wraps an already begun HAL pass.
func NewRenderPassEncoder(label string, pass hal.RenderPassEncoder) *RenderPassEncoder {
	return &RenderPassEncoder{pass: pass, label: label, state: RenderPassStateRecording}
}

// Label returns the debug label the pass was begun with.
func (p *RenderPassEncoder) Label() string { return p.label }

// State returns the current pass state.
func (p *RenderPassEncoder) State() RenderPassState {
	if p == nil {
		return RenderPassStateEnded
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsEnded returns true if the pass has been ended.
func (p *RenderPassEncoder) IsEnded() bool {
	return p.State() == RenderPassStateEnded
}

// Stats returns the draws recorded so far.
func (p *RenderPassEncoder) Stats() PassStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// checkRecording returns an error if the pass is not in Recording state.
// The caller must hold p.mu.
func (p *RenderPassEncoder) checkRecording() error {
	if p.state != RenderPassStateRecording {
		return ErrPassEnded
	}
	return nil
}

// SetPipeline binds a render pipeline for subsequent draw calls.
func (p *RenderPassEncoder) SetPipeline(pipeline hal.RenderPipeline) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set pipeline: %w", err)
	}
	if pipeline == nil {
		return ErrNilPipeline
	}
	p.pipeline = pipeline
	if p.pass != nil {
		p.pass.SetPipeline(pipeline)
	}
	return nil
}

// SetBindGroup binds a bind group at index (0 to 3).
func (p *RenderPassEncoder) SetBindGroup(index uint32, group hal.BindGroup) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set bind group: %w", err)
	}
	if index > 3 {
		return fmt.Errorf("%w: index %d", ErrBindGroupIndexOutOfRange, index)
	}
	if group == nil {
		return ErrNilBindGroup
	}
	if p.pass != nil {
		p.pass.SetBindGroup(index, group, nil)
	}
	return nil
}

// SetVertexBuffer binds buffer to a vertex slot.
func (p *RenderPassEncoder) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set vertex buffer: %w", err)
	}
	if buffer == nil {
		return ErrNilVertexBuffer
	}
	if p.pass != nil {
		p.pass.SetVertexBuffer(slot, buffer, offset)
	}
	return nil
}

// SetViewport sets the viewport transformation.
func (p *RenderPassEncoder) SetViewport(x, y, width, height, minDepth, maxDepth float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if p.pass != nil {
		p.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
	}
	return nil
}

// SetScissorRect restricts rasterization to a rectangle in pixels.
func (p *RenderPassEncoder) SetScissorRect(x, y, width, height uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("set scissor rect: %w", err)
	}
	if p.pass != nil {
		p.pass.SetScissorRect(x, y, width, height)
	}
	return nil
}

// Draw draws vertexCount vertices of instanceCount instances.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkRecording(); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	if p.pipeline == nil {
		return fmt.Errorf("draw: %w", ErrNoPipeline)
	}
	if p.pass != nil {
		p.pass.Draw(vertexCount, instanceCount, 0, 0)
	}
	p.stats.Draws++
	p.stats.Vertices += uint64(vertexCount) * uint64(instanceCount)
	return nil
}

// End completes the pass. Calling End again is a no-op.
func (p *RenderPassEncoder) End() error {
	p.mu.Lock()
	if p.state == RenderPassStateEnded {
		p.mu.Unlock()
		return nil
	}
	p.state = RenderPassStateEnded
	if p.pass != nil {
		p.pass.End()
	}
	onEnd := p.onEnd
	p.onEnd = nil
	p.mu.Unlock()

	if onEnd != nil {
		onEnd(p)
	}
	return nil
}
