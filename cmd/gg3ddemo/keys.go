package main

import (
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
)

var keyNames = map[string]gpucontext.Key{
	"left":     gpucontext.KeyLeft,
	"right":    gpucontext.KeyRight,
	"up":       gpucontext.KeyUp,
	"down":     gpucontext.KeyDown,
	"pageup":   gpucontext.KeyPageUp,
	"pagedown": gpucontext.KeyPageDown,
	"a":        gpucontext.KeyA,
	"d":        gpucontext.KeyD,
	"w":        gpucontext.KeyW,
	"s":        gpucontext.KeyS,
	"r":        gpucontext.KeyR,
}

// parseKeys parses a comma-separated list of key names.
func parseKeys(list string) ([]gpucontext.Key, error) {
	var keys []gpucontext.Key
	for name := range strings.SplitSeq(list, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		k, ok := keyNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown key %q", name)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
