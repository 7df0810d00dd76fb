// Package commands records the per-image command buffers. Recording happens
// once per swapchain generation; frames only resubmit.
package commands

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/present/internal/device"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

// The draw is a fixed primitive generated by the vertex shader.
const (
	VertexCount   = 3
	InstanceCount = 1
)

// Encoder writes commands into buffer idx. Buffer idx renders into
// framebuffer idx.
type Encoder interface {
	Begin(idx int) error
	BeginRenderPass(idx int, extent core1_0.Extent2D, clear mgl32.Vec4) error
	BindPipeline(idx int)
	Draw(idx int, vertexCount, instanceCount, firstVertex, firstInstance int)
	EndRenderPass(idx int)
	End(idx int) error
}

// Encode records count identical passes: clear, bind, draw, end.
func Encode(enc Encoder, count int, extent core1_0.Extent2D, clear mgl32.Vec4) error {
	for idx := 0; idx < count; idx++ {
		if err := enc.Begin(idx); err != nil {
			return gfxerr.Resource(err, "vulkan: begin command buffer %d", idx)
		}
		if err := enc.BeginRenderPass(idx, extent, clear); err != nil {
			return gfxerr.Resource(err, "vulkan: begin render pass %d", idx)
		}
		enc.BindPipeline(idx)
		enc.Draw(idx, VertexCount, InstanceCount, 0, 0)
		enc.EndRenderPass(idx)
		if err := enc.End(idx); err != nil {
			return gfxerr.Resource(err, "vulkan: failed to record command buffer %d", idx)
		}
	}
	return nil
}

type Pool struct {
	driver core1_0.CoreDeviceDriver
	pool   core1_0.CommandPool

	Buffers []core1_0.CommandBuffer
}

// NewPool creates a pool on the graphics family. Its buffers can be reset
// individually.
func NewPool(ctx *device.Context) (*Pool, error) {
	pool, _, err := ctx.Driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: ctx.Families.Graphics,
	})
	if err != nil {
		return nil, gfxerr.Resource(err, "vulkan: failed to create command pool")
	}
	return &Pool{driver: ctx.Driver, pool: pool}, nil
}

// Record allocates one primary buffer per framebuffer and records the draw
// into each. Buffers from an earlier Record are freed first.
func (p *Pool) Record(renderPass core1_0.RenderPass, pipeline core1_0.Pipeline, framebuffers []core1_0.Framebuffer, extent core1_0.Extent2D, clear mgl32.Vec4) error {
	p.Free()

	buffers, _, err := p.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        p.pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: len(framebuffers),
	})
	if err != nil {
		return gfxerr.Resource(err, "vulkan: failed to allocate command buffers")
	}
	p.Buffers = buffers

	enc := &vulkanEncoder{
		driver:       p.driver,
		buffers:      buffers,
		framebuffers: framebuffers,
		renderPass:   renderPass,
		pipeline:     pipeline,
	}
	if err := Encode(enc, len(buffers), extent, clear); err != nil {
		p.Free()
		return err
	}
	return nil
}

// Free returns the recorded buffers to the pool.
func (p *Pool) Free() {
	if p == nil || len(p.Buffers) == 0 {
		return
	}
	p.driver.FreeCommandBuffers(p.Buffers...)
	p.Buffers = nil
}

// Destroy frees the buffers and destroys the pool. Safe on nil.
func (p *Pool) Destroy() {
	if p == nil {
		return
	}
	p.Free()
	if p.pool.Initialized() {
		p.driver.DestroyCommandPool(p.pool, nil)
	}
	p.pool = core1_0.CommandPool{}
}

type vulkanEncoder struct {
	driver       core1_0.CoreDeviceDriver
	buffers      []core1_0.CommandBuffer
	framebuffers []core1_0.Framebuffer
	renderPass   core1_0.RenderPass
	pipeline     core1_0.Pipeline
}

func (e *vulkanEncoder) Begin(idx int) error {
	_, err := e.driver.BeginCommandBuffer(e.buffers[idx], core1_0.CommandBufferBeginInfo{})
	return err
}

func (e *vulkanEncoder) BeginRenderPass(idx int, extent core1_0.Extent2D, clear mgl32.Vec4) error {
	return e.driver.CmdBeginRenderPass(e.buffers[idx], core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  e.renderPass,
			Framebuffer: e.framebuffers[idx],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{clear.X(), clear.Y(), clear.Z(), clear.W()},
			},
		})
}

func (e *vulkanEncoder) BindPipeline(idx int) {
	e.driver.CmdBindPipeline(e.buffers[idx], core1_0.PipelineBindPointGraphics, e.pipeline)
}

func (e *vulkanEncoder) Draw(idx int, vertexCount, instanceCount, firstVertex, firstInstance int) {
	e.driver.CmdDraw(e.buffers[idx], vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

func (e *vulkanEncoder) EndRenderPass(idx int) {
	e.driver.CmdEndRenderPass(e.buffers[idx])
}

func (e *vulkanEncoder) End(idx int) error {
	_, err := e.driver.EndCommandBuffer(e.buffers[idx])
	return err
}
