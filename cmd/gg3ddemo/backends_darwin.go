package main

import (
	"github.com/gogpu/wgpu/hal/metal"
	"github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gg3d"
)

func registerPlatformBackends() {
	gg3d.RegisterBackend("metal", metal.Backend{})
	gg3d.RegisterBackend("vulkan", vulkan.Backend{})
}
