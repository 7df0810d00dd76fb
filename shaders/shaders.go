// Package shaders carries the compiled SPIR-V for the triangle. Rebuild it
// with go generate after editing the GLSL sources.
package shaders

import "embed"

//go:generate glslc triangle.vert -o vert.spv
//go:generate glslc triangle.frag -o frag.spv

//go:embed vert.spv frag.spv
var FS embed.FS
