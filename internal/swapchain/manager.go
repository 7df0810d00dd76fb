// Package swapchain negotiates presentation parameters with the surface and
// owns the swapchain, its images and one color view per image.
package swapchain

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/device"
	"github.com/vkngwrapper/present/internal/gfxerr"
	"github.com/vkngwrapper/present/internal/logging"
)

// Chain is one generation of the swapchain. Images are owned by the
// swapchain; Views are owned by the Chain.
type Chain struct {
	Swapchain khr_swapchain.Swapchain
	Images    []core1_0.Image
	Views     []core1_0.ImageView

	Format      khr_surface.SurfaceFormat
	Extent      core1_0.Extent2D
	PresentMode khr_surface.PresentMode

	Generation int
}

func (c *Chain) ImageCount() int {
	return len(c.Images)
}

type Manager struct {
	device           *device.Context
	surfaceExtension khr_surface.ExtensionDriver
	extension        khr_swapchain.ExtensionDriver
	surface          khr_surface.Surface
	cfg              config.PresentationConfig

	generation int
}

func NewManager(ctx *device.Context, surfaceExtension khr_surface.ExtensionDriver, surface khr_surface.Surface, cfg config.PresentationConfig) *Manager {
	return &Manager{
		device:           ctx,
		surfaceExtension: surfaceExtension,
		extension:        khr_swapchain.CreateExtensionDriverFromCoreDriver(ctx.Driver),
		surface:          surface,
		cfg:              cfg,
	}
}

// Extension is the swapchain driver used for acquire and present.
func (m *Manager) Extension() khr_swapchain.ExtensionDriver {
	return m.extension
}

// Support queries the surface as it is right now. Capabilities change with
// the window, so this runs again on every recreation.
func (m *Manager) Support() (Support, error) {
	var support Support
	var err error

	support.Capabilities, _, err = m.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(m.surface, m.device.PhysicalDevice)
	if err != nil {
		return support, gfxerr.Discovery(err, "vulkan: surface capabilities")
	}
	support.Formats, _, err = m.surfaceExtension.GetPhysicalDeviceSurfaceFormats(m.surface, m.device.PhysicalDevice)
	if err != nil {
		return support, gfxerr.Discovery(err, "vulkan: surface formats")
	}
	support.PresentModes, _, err = m.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(m.surface, m.device.PhysicalDevice)
	if err != nil {
		return support, gfxerr.Discovery(err, "vulkan: surface present modes")
	}
	return support, nil
}

// Create builds a chain for a drawable of width x height. When old is not
// nil it is passed as the retiring swapchain; the caller still destroys it.
func (m *Manager) Create(width, height int, old *Chain) (*Chain, error) {
	support, err := m.Support()
	if err != nil {
		return nil, err
	}

	n, err := Negotiate(support, m.cfg, width, height)
	if err != nil {
		return nil, err
	}
	if n.PresentModeFallback {
		logging.Logger().Warn("vulkan: unable to use preferred display mode, falling back to FIFO",
			"preferred", m.cfg.PresentMode)
	}
	if n.TransformFallback {
		logging.Logger().Warn("vulkan: preferred transform unsupported, using current transform",
			"preferred", m.cfg.Transform, "current", n.Transform)
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if !m.device.Families.Shared() {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = m.device.Families.Unique()
	}

	info := khr_swapchain.SwapchainCreateInfo{
		Surface: m.surface,

		MinImageCount:    n.ImageCount,
		ImageFormat:      n.Format.Format,
		ImageColorSpace:  n.Format.ColorSpace,
		ImageExtent:      n.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       n.Usage,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   n.Transform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    n.PresentMode,
		Clipped:        true,
	}
	if old != nil {
		info.OldSwapchain = old.Swapchain
	}

	swapchain, _, err := m.extension.CreateSwapchain(nil, info)
	if err != nil {
		return nil, gfxerr.Resource(err, "vulkan: failed to create swapchain")
	}

	chain := &Chain{
		Swapchain:   swapchain,
		Format:      n.Format,
		Extent:      n.Extent,
		PresentMode: n.PresentMode,
	}

	chain.Images, _, err = m.extension.GetSwapchainImages(swapchain)
	if err != nil {
		m.Destroy(chain)
		return nil, gfxerr.Resource(err, "vulkan: get swapchain images")
	}

	for idx, image := range chain.Images {
		view, _, err := m.device.Driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   n.Format.Format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			m.Destroy(chain)
			return nil, gfxerr.Resource(err, "vulkan: failed to create image view %d", idx)
		}
		chain.Views = append(chain.Views, view)
	}

	m.generation++
	chain.Generation = m.generation

	logging.Logger().Info("vulkan: swapchain created",
		"generation", chain.Generation,
		"images", chain.ImageCount(),
		"width", chain.Extent.Width,
		"height", chain.Extent.Height,
		"format", chain.Format.Format,
		"present_mode", chain.PresentMode)
	return chain, nil
}

// Recreate drains the device, builds a replacement for old and only then
// destroys old. If building fails old is still destroyed, since a retired
// swapchain cannot be presented to again. The returned chain is always the
// one the caller owns afterwards, even alongside an error: old when the
// drain failed, nil when creation failed.
func (m *Manager) Recreate(width, height int, old *Chain) (*Chain, error) {
	return replace(old, m.device.WaitIdle, func(old *Chain) (*Chain, error) {
		return m.Create(width, height, old)
	}, m.Destroy)
}

func replace(old *Chain, drain func() error, create func(old *Chain) (*Chain, error), destroy func(*Chain)) (*Chain, error) {
	if err := drain(); err != nil {
		return old, err
	}

	chain, err := create(old)
	destroy(old)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// Destroy releases the views and the swapchain. Safe on nil.
func (m *Manager) Destroy(chain *Chain) {
	if chain == nil {
		return
	}

	for i := len(chain.Views) - 1; i >= 0; i-- {
		m.device.Driver.DestroyImageView(chain.Views[i], nil)
	}
	chain.Views = nil
	chain.Images = nil

	if chain.Swapchain.Initialized() {
		m.extension.DestroySwapchain(chain.Swapchain, nil)
	}
	chain.Swapchain = khr_swapchain.Swapchain{}
}
