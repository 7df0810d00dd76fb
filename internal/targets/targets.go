// Package targets builds the render pass and one framebuffer per swapchain
// view.
package targets

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

// Set is rebuilt whenever the swapchain is.
type Set struct {
	driver core1_0.CoreDeviceDriver

	RenderPass   core1_0.RenderPass
	Framebuffers []core1_0.Framebuffer
}

// CreateRenderPass describes a single color attachment that is cleared,
// stored and handed to the presentation engine.
func CreateRenderPass(driver core1_0.CoreDeviceDriver, format core1_0.Format) (core1_0.RenderPass, error) {
	renderPass, _, err := driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         format,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
			},
		},
		// The layout transition must wait for the acquire semaphore, which
		// the submit waits on at color attachment output.
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput,
				DstAccessMask: core1_0.AccessColorAttachmentWrite,
			},
		},
	})
	if err != nil {
		return core1_0.RenderPass{}, gfxerr.Resource(err, "vulkan: failed to create render pass")
	}
	return renderPass, nil
}

// CreateFramebuffers makes one framebuffer per view, in view order. On
// failure the framebuffers already built are destroyed.
func CreateFramebuffers(driver core1_0.CoreDeviceDriver, renderPass core1_0.RenderPass, views []core1_0.ImageView, extent core1_0.Extent2D) ([]core1_0.Framebuffer, error) {
	return createAll(len(views), func(idx int) (core1_0.Framebuffer, error) {
		framebuffer, _, err := driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Layers:      1,
			Attachments: []core1_0.ImageView{views[idx]},
			Width:       extent.Width,
			Height:      extent.Height,
		})
		if err != nil {
			return framebuffer, gfxerr.Resource(errors.Mark(err, gfxerr.ErrFramebufferCreation), "vulkan: framebuffer %d", idx)
		}
		return framebuffer, nil
	}, func(framebuffer core1_0.Framebuffer) {
		driver.DestroyFramebuffer(framebuffer, nil)
	})
}

// createAll creates n objects in order. If one fails, the ones before it are
// destroyed in reverse order and only the error is returned.
func createAll[T any](n int, create func(idx int) (T, error), destroy func(T)) ([]T, error) {
	out := make([]T, 0, n)
	for idx := 0; idx < n; idx++ {
		obj, err := create(idx)
		if err != nil {
			for i := len(out) - 1; i >= 0; i-- {
				destroy(out[i])
			}
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func destroyFramebuffers(driver core1_0.CoreDeviceDriver, framebuffers []core1_0.Framebuffer) {
	for i := len(framebuffers) - 1; i >= 0; i-- {
		driver.DestroyFramebuffer(framebuffers[i], nil)
	}
}

// New builds the render pass and the framebuffers for views.
func New(driver core1_0.CoreDeviceDriver, format core1_0.Format, views []core1_0.ImageView, extent core1_0.Extent2D) (*Set, error) {
	renderPass, err := CreateRenderPass(driver, format)
	if err != nil {
		return nil, err
	}

	framebuffers, err := CreateFramebuffers(driver, renderPass, views, extent)
	if err != nil {
		driver.DestroyRenderPass(renderPass, nil)
		return nil, err
	}

	return &Set{
		driver:       driver,
		RenderPass:   renderPass,
		Framebuffers: framebuffers,
	}, nil
}

// Destroy destroys the framebuffers, then the render pass. Safe on nil.
func (s *Set) Destroy() {
	if s == nil {
		return
	}
	destroyFramebuffers(s.driver, s.Framebuffers)
	s.Framebuffers = nil

	if s.RenderPass.Initialized() {
		s.driver.DestroyRenderPass(s.RenderPass, nil)
	}
	s.RenderPass = core1_0.RenderPass{}
}
