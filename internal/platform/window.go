// Package platform wraps the native window the swapchain presents into.
package platform

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// Events is what happened to the window since the last Poll.
type Events struct {
	Quit      bool
	Resized   bool
	Minimized bool
	Restored  bool
}

// Window is the drawable the renderer presents into.
type Window interface {
	// VulkanDriver loads the Vulkan entry points through the window system.
	VulkanDriver() (core1_0.GlobalDriver, error)
	// InstanceExtensions lists the instance extensions surfaces need.
	InstanceExtensions() []string
	CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)

	// DrawableSize is the size in pixels, which can differ from the window
	// size on high-DPI displays.
	DrawableSize() (int, int)
	Minimized() bool
	Poll() Events

	ShowError(title, message string)
	Destroy()
}
