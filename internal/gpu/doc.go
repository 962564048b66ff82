// Package gpu is the HAL plumbing beneath gg3d.
//
// It opens devices through a prioritized backend registry and records
// frames. It has no notion of meshes or shaders; gg3d builds those on top.
//
// # Frames
//
// A FrameSession owns one command encoder. Passes are begun from it one
// at a time, and transient buffers and bind groups created through it are
// released after Submit has waited for the GPU:
//
//	s, err := gpu.BeginFrame(device, queue, "frame")
//	pass, err := s.BeginRenderPass(desc)
//	// SetPipeline, SetBindGroup, SetVertexBuffer, Draw
//	pass.End()
//	rb, err := gpu.EncodeReadback(s, tex, format, w, h)
//	err = s.Submit(rb.Read)
//
// # Pipelines
//
// PipelineCache memoizes render pipelines by a caller-defined comparable
// key, typically the attachment formats plus the vertex stream layout.
//
// # Logging
//
// The package logs through a silent slog.Logger until SetLogger is
// called, normally via gg3d.SetLogger.
package gpu
