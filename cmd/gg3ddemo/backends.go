package main

import (
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"

	"github.com/gogpu/gg3d"
)

func registerBackends() {
	gg3d.RegisterBackend("software", software.API{})
	gg3d.RegisterBackend("noop", noop.API{})
	registerPlatformBackends()
}
