package gg3d

import (
	"embed"
	"fmt"
)

//go:embed shaders/*.wgsl
var shaderFS embed.FS

func mustShader(name string) string {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		panic(fmt.Sprintf("gg3d: missing embedded shader %s", name))
	}
	return string(b)
}

func compileNamed(ctx *Context, name string) (*Program, error) {
	return Compile(ctx, name, mustShader(name+"_vs.wgsl"), mustShader(name+"_fs.wgsl"))
}

// DepthProgram renders geometry from the light's point of view. Its color
// output is the fragment's window position, so depth lands in the blue
// channel of the target.
//
// Declares a_position, u_worldMatrix, u_viewMatrix and u_projectionMatrix.
func DepthProgram(ctx *Context) (*Program, error) { return compileNamed(ctx, "depth") }

// DiffuseProgram shades with a single directional light.
//
// Declares a_position, a_normal, u_worldMatrix, u_viewMatrix,
// u_projectionMatrix, u_normalMatrix, u_lightDirection and
// u_diffuseMaterial.
func DiffuseProgram(ctx *Context) (*Program, error) { return compileNamed(ctx, "diffuse") }

// ShadowedDiffuseProgram is DiffuseProgram with a shadow test against a
// map written by DepthProgram. It also declares u_shadowMatrix, which maps
// world space to the light's clip space, u_shadowMap and u_shadowSampler.
func ShadowedDiffuseProgram(ctx *Context) (*Program, error) { return compileNamed(ctx, "shadowed") }

// BlitProgram draws a texture in clip space, remapping the red channel
// from [-1, 1] to gray. It declares a_position, a_texcoords, u_texture and
// u_sampler and no matrices, so only a Quad makes sense with it.
func BlitProgram(ctx *Context) (*Program, error) { return compileNamed(ctx, "blit") }

// TextureProgram draws textured geometry.
//
// Declares a_position, a_texcoords, u_worldMatrix, u_viewMatrix,
// u_projectionMatrix, u_texture and u_sampler.
func TextureProgram(ctx *Context) (*Program, error) { return compileNamed(ctx, "texture") }
