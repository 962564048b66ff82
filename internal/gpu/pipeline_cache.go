package gpu

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"
)

// PipelineCache caches render pipelines keyed by the state they were built
// for. It is safe for concurrent use; lookups take a read lock and
// creation double-checks under the write lock.
type PipelineCache[K comparable] struct {
	mu        sync.RWMutex
	device    hal.Device
	pipelines map[K]hal.RenderPipeline

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPipelineCache creates an empty cache whose pipelines belong to device.
func NewPipelineCache[K comparable](device hal.Device) *PipelineCache[K] {
	return &PipelineCache[K]{device: device, pipelines: make(map[K]hal.RenderPipeline)}
}

// GetOrCreate returns the pipeline for key, calling create on a miss.
// A failed create is not cached.
func (c *PipelineCache[K]) GetOrCreate(key K, create func() (hal.RenderPipeline, error)) (hal.RenderPipeline, error) {
	c.mu.RLock()
	if p, ok := c.pipelines[key]; ok {
		c.mu.RUnlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		c.hits.Add(1)
		return p, nil
	}
	p, err := create()
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = p
	c.misses.Add(1)
	return p, nil
}

// Stats returns cache hits and misses.
func (c *PipelineCache[K]) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of cached pipelines.
func (c *PipelineCache[K]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// Destroy releases every cached pipeline. The cache stays usable.
func (c *PipelineCache[K]) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.pipelines {
		if c.device != nil {
			c.device.DestroyRenderPipeline(p)
		}
		delete(c.pipelines, k)
	}
}
