// Package config holds the startup settings of the presentation pipeline.
//
// Nothing here is mutable after startup: a PresentationConfig is built once
// by Default or Parse and handed by value to every stage that needs it,
// including the swapchain manager on each recreation.
package config

import (
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// MaxFramesInFlight is the number of frame slots pipelined between the CPU
// and the GPU.
const MaxFramesInFlight = 2

const (
	AppName     = "VulkanDemo"
	WindowTitle = "Hello Vulkan"
	EngineName  = "VulkanDemoEngine"

	ValidationLayer = "VK_LAYER_KHRONOS_validation"
)

type PresentationConfig struct {
	Title  string
	Width  int
	Height int

	PresentMode   khr_surface.PresentMode
	SurfaceFormat khr_surface.SurfaceFormat
	ImageUsage    core1_0.ImageUsageFlags
	Transform     khr_surface.SurfaceTransformFlags

	ClearColor mgl32.Vec4

	// ShaderDir overrides the built-in shaders when set.
	ShaderDir string

	Validation         bool
	RequestedLayers    []string
	RequiredExtensions []string
	DeviceExtensions   []string

	// MaxFenceWait is the diagnostic threshold for a single blocking fence
	// wait. Waits are never aborted; exceeding it only logs.
	MaxFenceWait time.Duration

	LogLevel slog.Level
}

// Default returns the settings the demo ships with.
func Default() PresentationConfig {
	return PresentationConfig{
		Title:  WindowTitle,
		Width:  800,
		Height: 600,

		PresentMode: khr_surface.PresentModeFIFORelaxed,
		SurfaceFormat: khr_surface.SurfaceFormat{
			Format:     core1_0.FormatB8G8R8A8SRGB,
			ColorSpace: khr_surface.ColorSpaceSRGBNonlinear,
		},
		ImageUsage: core1_0.ImageUsageColorAttachment,
		Transform:  khr_surface.TransformIdentity,

		ClearColor: mgl32.Vec4{0, 0, 0, 1},

		Validation:       true,
		RequestedLayers:  []string{ValidationLayer},
		DeviceExtensions: []string{khr_swapchain.ExtensionName},

		MaxFenceWait: 2 * time.Second,
		LogLevel:     slog.LevelInfo,
	}
}

// Validate rejects settings no swapchain could be built from.
func (c PresentationConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.ImageUsage == 0 {
		return errors.New("image usage must request at least one bit")
	}
	if c.MaxFenceWait <= 0 {
		return errors.Newf("max fence wait must be positive, got %s", c.MaxFenceWait)
	}
	if c.ClearColor.W() < 0 || c.ClearColor.W() > 1 {
		return errors.Newf("clear color alpha %v out of range", c.ClearColor.W())
	}

	hasSwapchain := false
	for _, ext := range c.DeviceExtensions {
		if ext == khr_swapchain.ExtensionName {
			hasSwapchain = true
		}
	}
	if !hasSwapchain {
		return errors.Newf("device extensions must include %s", khr_swapchain.ExtensionName)
	}

	return nil
}
