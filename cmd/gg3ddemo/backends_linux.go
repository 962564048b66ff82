package main

import (
	"github.com/gogpu/wgpu/hal/gles"
	"github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gg3d"
)

func registerPlatformBackends() {
	gg3d.RegisterBackend("vulkan", vulkan.Backend{})
	gg3d.RegisterBackend("gles", gles.Backend{})
}
