// Package pipeline builds the graphics pipeline that draws the fixed
// primitive into the render pass.
package pipeline

import (
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

const (
	VertexShader   = "vert.spv"
	FragmentShader = "frag.spv"
)

// BytesToBytecode reads SPIR-V as little-endian 32-bit words.
func BytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("spir-v length %d is not a positive multiple of 4", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode, nil
}

// LoadShader reads and converts one SPIR-V file from shaders.
func LoadShader(shaders fs.FS, name string) ([]uint32, error) {
	b, err := fs.ReadFile(shaders, name)
	if err != nil {
		return nil, gfxerr.Resource(err, "vulkan: read shader %s", name)
	}
	code, err := BytesToBytecode(b)
	if err != nil {
		return nil, gfxerr.Resource(err, "vulkan: shader %s", name)
	}
	return code, nil
}

type Pipeline struct {
	driver core1_0.CoreDeviceDriver

	Layout   core1_0.PipelineLayout
	Pipeline core1_0.Pipeline
}

// Destroy is safe on nil.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	if p.Pipeline.Initialized() {
		p.driver.DestroyPipeline(p.Pipeline, nil)
	}
	if p.Layout.Initialized() {
		p.driver.DestroyPipelineLayout(p.Layout, nil)
	}
	p.Pipeline = core1_0.Pipeline{}
	p.Layout = core1_0.PipelineLayout{}
}

// Builder creates pipelines from the shaders in one directory. The bytecode
// is read once; modules are created per build and dropped right after.
type Builder struct {
	driver   core1_0.CoreDeviceDriver
	vertCode []uint32
	fragCode []uint32
}

func NewBuilder(driver core1_0.CoreDeviceDriver, shaders fs.FS) (*Builder, error) {
	vertCode, err := LoadShader(shaders, VertexShader)
	if err != nil {
		return nil, err
	}
	fragCode, err := LoadShader(shaders, FragmentShader)
	if err != nil {
		return nil, err
	}
	return &Builder{driver: driver, vertCode: vertCode, fragCode: fragCode}, nil
}

func (b *Builder) shaderModule(code []uint32, name string) (core1_0.ShaderModule, error) {
	module, _, err := b.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return module, gfxerr.Resource(err, "vulkan: failed to create shader module %s", name)
	}
	return module, nil
}

// Build makes a pipeline for renderPass with the viewport fixed to extent.
func (b *Builder) Build(renderPass core1_0.RenderPass, extent core1_0.Extent2D) (*Pipeline, error) {
	vertShader, err := b.shaderModule(b.vertCode, VertexShader)
	if err != nil {
		return nil, err
	}
	defer b.driver.DestroyShaderModule(vertShader, nil)

	fragShader, err := b.shaderModule(b.fragCode, FragmentShader)
	if err != nil {
		return nil, err
	}
	defer b.driver.DestroyShaderModule(fragShader, nil)

	// Vertices come from gl_VertexIndex.
	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(extent.Width),
				Height:   float32(extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	p := &Pipeline{driver: b.driver}
	p.Layout, _, err = b.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return nil, gfxerr.Resource(err, "vulkan: failed to create pipeline layout")
	}

	pipelines, _, err := b.driver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			Layout:             p.Layout,
			RenderPass:         renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		p.Destroy()
		return nil, gfxerr.Resource(err, "vulkan: failed to create graphics pipeline")
	}
	p.Pipeline = pipelines[0]

	return p, nil
}
