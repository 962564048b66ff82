package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Frame session errors.
var (
	// ErrSessionClosed is returned when a session is used after Submit or Discard.
	ErrSessionClosed = errors.New("gpu: frame session is closed")

	// ErrPassActive is returned when a pass is begun, or the session
	// submitted, while another pass is still recording.
	ErrPassActive = errors.New("gpu: a render pass is still recording")
)

// FrameSession owns one command encoder and every transient resource
// created for the frame it records. All passes of a frame share the
// encoder and are submitted together, so a later pass observes what an
// earlier pass wrote.
//
// Transient buffers and bind groups are released after the GPU is idle.
type FrameSession struct {
	mu sync.Mutex

	device hal.Device
	queue  hal.Queue

	encoder hal.CommandEncoder
	active  *RenderPassEncoder
	closed  bool

	buffers    []hal.Buffer
	bindGroups []hal.BindGroup

	passes []PassStats
}

// BeginFrame creates a command encoder and starts recording.
func BeginFrame(device hal.Device, queue hal.Queue, label string) (*FrameSession, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return &FrameSession{device: device, queue: queue, encoder: encoder}, nil
}

// Encoder exposes the command encoder for copies between passes.
func (s *FrameSession) Encoder() hal.CommandEncoder { return s.encoder }

// Device returns the device the session records for.
func (s *FrameSession) Device() hal.Device { return s.device }

// BeginRenderPass starts a render pass. Only one pass may record at a time.
func (s *FrameSession) BeginRenderPass(desc *hal.RenderPassDescriptor) (*RenderPassEncoder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.active != nil {
		return nil, fmt.Errorf("begin %s: %w", desc.Label, ErrPassActive)
	}
	p := NewRenderPassEncoder(desc.Label, s.encoder.BeginRenderPass(desc))
	p.onEnd = s.passEnded
	s.active = p
	return p, nil
}

func (s *FrameSession) passEnded(p *RenderPassEncoder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == p {
		s.active = nil
	}
	s.passes = append(s.passes, p.Stats())
}

// UploadBuffer creates a buffer holding data that lives until the frame
// is released.
func (s *FrameSession) UploadBuffer(label string, usage gputypes.BufferUsage, data []byte) (hal.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	buf, err := CreateBufferWithData(s.device, s.queue, label, usage, data)
	if err != nil {
		return nil, err
	}
	s.buffers = append(s.buffers, buf)
	return buf, nil
}

// CreateBuffer creates an uninitialized buffer that lives until the frame
// is released.
func (s *FrameSession) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	buf, err := s.device.CreateBuffer(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", desc.Label, err)
	}
	s.buffers = append(s.buffers, buf)
	return buf, nil
}

// CreateBindGroup creates a bind group that lives until the frame is released.
func (s *FrameSession) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	bg, err := s.device.CreateBindGroup(desc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", desc.Label, err)
	}
	s.bindGroups = append(s.bindGroups, bg)
	return bg, nil
}

// Passes returns the stats of every ended pass, in order.
func (s *FrameSession) Passes() []PassStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PassStats, len(s.passes))
	copy(out, s.passes)
	return out
}

// Submit ends encoding, submits the command buffer and waits for the GPU
// to go idle. Transient resources are released even when submission fails.
// The optional after callback runs once the GPU is idle and before the
// transient resources are released.
func (s *FrameSession) Submit(after func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.active != nil {
		s.mu.Unlock()
		return ErrPassActive
	}
	s.closed = true
	s.mu.Unlock()
	defer s.release()

	cmdBuf, err := s.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer s.device.FreeCommandBuffer(cmdBuf)

	if _, err := s.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := s.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if after != nil {
		return after()
	}
	return nil
}

// Discard abandons the recorded commands and releases transient resources.
// Discard after Submit is a no-op.
func (s *FrameSession) Discard() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	active := s.active
	s.mu.Unlock()

	if active != nil {
		_ = active.End()
	}
	s.encoder.DiscardEncoding()
	s.release()
}

// release destroys transient resources in reverse creation order.
func (s *FrameSession) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.bindGroups) - 1; i >= 0; i-- {
		s.device.DestroyBindGroup(s.bindGroups[i])
	}
	for i := len(s.buffers) - 1; i >= 0; i-- {
		s.device.DestroyBuffer(s.buffers[i])
	}
	s.bindGroups = nil
	s.buffers = nil
}
