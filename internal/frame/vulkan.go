package frame

import (
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/present/internal/device"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

// Slot is the synchronization state of one pipelined frame.
type Slot struct {
	ImageReady     core1_0.Semaphore
	RenderFinished core1_0.Semaphore
	InFlight       core1_0.Fence
}

// CreateSlots creates n slots with their fences already signaled, so the
// first wait on each returns at once.
func CreateSlots(driver core1_0.CoreDeviceDriver, n int) ([]Slot, error) {
	slots := make([]Slot, 0, n)
	for i := 0; i < n; i++ {
		var slot Slot
		var err error

		slot.ImageReady, _, err = driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err == nil {
			slot.RenderFinished, _, err = driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		}
		if err == nil {
			slot.InFlight, _, err = driver.CreateFence(nil, core1_0.FenceCreateInfo{
				Flags: core1_0.FenceCreateSignaled,
			})
		}
		if err != nil {
			DestroySlots(driver, append(slots, slot))
			return nil, gfxerr.Resource(err, "vulkan: failed to create synchronization objects for frame %d", i)
		}

		slots = append(slots, slot)
	}
	return slots, nil
}

// DestroySlots destroys whatever each slot holds. The device must be idle.
func DestroySlots(driver core1_0.CoreDeviceDriver, slots []Slot) {
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i].InFlight.Initialized() {
			driver.DestroyFence(slots[i].InFlight, nil)
		}
		if slots[i].RenderFinished.Initialized() {
			driver.DestroySemaphore(slots[i].RenderFinished, nil)
		}
		if slots[i].ImageReady.Initialized() {
			driver.DestroySemaphore(slots[i].ImageReady, nil)
		}
	}
}

// VulkanBackend runs the frame protocol on a real device.
type VulkanBackend struct {
	driver    core1_0.CoreDeviceDriver
	extension khr_swapchain.ExtensionDriver
	graphics  core1_0.Queue
	present   core1_0.Queue
	slots     []Slot

	swapchain khr_swapchain.Swapchain
	buffers   []core1_0.CommandBuffer
}

func NewVulkanBackend(ctx *device.Context, extension khr_swapchain.ExtensionDriver, slots []Slot) *VulkanBackend {
	return &VulkanBackend{
		driver:    ctx.Driver,
		extension: extension,
		graphics:  ctx.GraphicsQueue,
		present:   ctx.PresentQueue,
		slots:     slots,
	}
}

// Bind points the backend at a swapchain and its per-image command buffers.
func (b *VulkanBackend) Bind(swapchain khr_swapchain.Swapchain, buffers []core1_0.CommandBuffer) {
	b.swapchain = swapchain
	b.buffers = buffers
}

func (b *VulkanBackend) WaitFence(slot int) error {
	_, err := b.driver.WaitForFences(true, common.NoTimeout, b.slots[slot].InFlight)
	return err
}

func (b *VulkanBackend) ResetFence(slot int) error {
	_, err := b.driver.ResetFences(b.slots[slot].InFlight)
	return err
}

func (b *VulkanBackend) Acquire(slot int) (int, bool, error) {
	imageIndex, res, err := b.extension.AcquireNextImage(b.swapchain, common.NoTimeout, &b.slots[slot].ImageReady, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return -1, false, gfxerr.Stale(err, "vulkan: swapchain out of date on acquire")
	} else if err != nil {
		return -1, false, err
	}
	return imageIndex, res == khr_swapchain.VKSuboptimal, nil
}

func (b *VulkanBackend) Submit(slot, image int) error {
	_, err := b.driver.QueueSubmit(b.graphics, &b.slots[slot].InFlight,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{b.slots[slot].ImageReady},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{b.buffers[image]},
			SignalSemaphores: []core1_0.Semaphore{b.slots[slot].RenderFinished},
		},
	)
	return err
}

func (b *VulkanBackend) Present(slot, image int) (bool, error) {
	res, err := b.extension.QueuePresent(b.present, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{b.slots[slot].RenderFinished},
		Swapchains:     []khr_swapchain.Swapchain{b.swapchain},
		ImageIndices:   []int{image},
	})
	if res == khr_swapchain.VKErrorOutOfDate {
		return false, gfxerr.Stale(err, "vulkan: swapchain out of date on present")
	} else if err != nil {
		return false, err
	}
	return res == khr_swapchain.VKSuboptimal, nil
}
