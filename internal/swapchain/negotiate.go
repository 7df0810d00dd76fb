package swapchain

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

// currentExtentSentinel in CurrentExtent.Width means the surface size is
// decided by the swapchain extent.
const currentExtentSentinel = -1

// Support is everything the surface reports about itself for one adapter.
type Support struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

// Negotiated is the outcome of matching a config against a surface.
type Negotiated struct {
	ImageCount  int
	Extent      core1_0.Extent2D
	Format      khr_surface.SurfaceFormat
	PresentMode khr_surface.PresentMode
	Transform   khr_surface.SurfaceTransformFlags
	Usage       core1_0.ImageUsageFlags

	PresentModeFallback bool
	TransformFallback   bool
}

// ChooseImageCount asks for one image more than the minimum, capped by the
// maximum. A maximum of 0 means unbounded.
func ChooseImageCount(caps *khr_surface.SurfaceCapabilities) int {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ChooseExtent uses the surface's current extent when it has one and clamps
// the window size into the supported range otherwise.
func ChooseExtent(caps *khr_surface.SurfaceCapabilities, width, height int) core1_0.Extent2D {
	if caps.CurrentExtent.Width != currentExtentSentinel {
		return caps.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// CheckUsage fails unless every required usage bit is supported.
func CheckUsage(caps *khr_surface.SurfaceCapabilities, required core1_0.ImageUsageFlags) error {
	missing := required &^ caps.SupportedUsageFlags
	if missing != 0 {
		return gfxerr.Capability(gfxerr.ErrUnsupportedUsage, "vulkan: unsupported image usage flag %s", missing)
	}
	return nil
}

// ChooseTransform returns preferred when supported, the current transform
// otherwise. The bool reports the fallback.
func ChooseTransform(caps *khr_surface.SurfaceCapabilities, preferred khr_surface.SurfaceTransformFlags) (khr_surface.SurfaceTransformFlags, bool) {
	if caps.SupportedTransforms&preferred == preferred {
		return preferred, false
	}
	return caps.CurrentTransform, true
}

// ChooseSurfaceFormat picks, in order: the exact preferred pair, the
// preferred pixel format in nonlinear sRGB, the preferred pixel format in
// any color space, the first format offered. A lone undefined entry means
// the surface takes anything.
func ChooseSurfaceFormat(formats []khr_surface.SurfaceFormat, preferred khr_surface.SurfaceFormat) (khr_surface.SurfaceFormat, bool) {
	if len(formats) == 0 {
		return khr_surface.SurfaceFormat{}, false
	}
	if len(formats) == 1 && formats[0].Format == core1_0.FormatUndefined {
		return preferred, true
	}

	for _, format := range formats {
		if format == preferred {
			return format, true
		}
	}
	for _, format := range formats {
		if format.Format == preferred.Format && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format, true
		}
	}
	for _, format := range formats {
		if format.Format == preferred.Format {
			return format, true
		}
	}

	return formats[0], true
}

// ChoosePresentMode returns preferred when offered and FIFO otherwise. FIFO
// is the one mode every surface must support. The bool reports the fallback.
func ChoosePresentMode(modes []khr_surface.PresentMode, preferred khr_surface.PresentMode) (khr_surface.PresentMode, bool) {
	for _, mode := range modes {
		if mode == preferred {
			return mode, false
		}
	}
	return khr_surface.PresentModeFIFO, preferred != khr_surface.PresentModeFIFO
}

// Negotiate matches cfg against the surface. Identical inputs always give
// identical results.
func Negotiate(support Support, cfg config.PresentationConfig, width, height int) (Negotiated, error) {
	caps := support.Capabilities
	if caps == nil {
		return Negotiated{}, gfxerr.Discovery(nil, "vulkan: no surface capabilities")
	}

	if err := CheckUsage(caps, cfg.ImageUsage); err != nil {
		return Negotiated{}, err
	}

	format, ok := ChooseSurfaceFormat(support.Formats, cfg.SurfaceFormat)
	if !ok {
		return Negotiated{}, gfxerr.Capability(nil, "vulkan: surface reports no formats")
	}

	n := Negotiated{
		ImageCount: ChooseImageCount(caps),
		Extent:     ChooseExtent(caps, width, height),
		Format:     format,
		Usage:      cfg.ImageUsage,
	}
	n.PresentMode, n.PresentModeFallback = ChoosePresentMode(support.PresentModes, cfg.PresentMode)
	n.Transform, n.TransformFallback = ChooseTransform(caps, cfg.Transform)

	return n, nil
}
