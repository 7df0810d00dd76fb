package swapchain

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

func caps(min, max int, current core1_0.Extent2D) *khr_surface.SurfaceCapabilities {
	return &khr_surface.SurfaceCapabilities{
		MinImageCount:       min,
		MaxImageCount:       max,
		CurrentExtent:       current,
		MinImageExtent:      core1_0.Extent2D{Width: 1, Height: 1},
		MaxImageExtent:      core1_0.Extent2D{Width: 4096, Height: 2160},
		SupportedTransforms: khr_surface.TransformIdentity,
		CurrentTransform:    khr_surface.TransformIdentity,
		SupportedUsageFlags: core1_0.ImageUsageColorAttachment | core1_0.ImageUsageTransferDst,
	}
}

var useWindowSize = core1_0.Extent2D{Width: currentExtentSentinel, Height: currentExtentSentinel}

var srgb = khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		min, max int
		want     int
	}{
		{min: 2, max: 3, want: 3},
		{min: 2, max: 8, want: 3},
		{min: 3, max: 3, want: 3},
		{min: 1, max: 0, want: 2},
		{min: 4, max: 0, want: 5},
	}

	for _, tt := range tests {
		if got := ChooseImageCount(caps(tt.min, tt.max, useWindowSize)); got != tt.want {
			t.Errorf("ChooseImageCount(min=%d, max=%d) = %d, want %d", tt.min, tt.max, got, tt.want)
		}
	}
}

func TestChooseExtentCurrent(t *testing.T) {
	current := core1_0.Extent2D{Width: 800, Height: 600}

	for _, size := range [][2]int{{1, 1}, {800, 600}, {10000, 10000}} {
		if got := ChooseExtent(caps(2, 3, current), size[0], size[1]); got != current {
			t.Errorf("ChooseExtent(%v) = %v, want current extent %v", size, got, current)
		}
	}
}

func TestChooseExtentClamps(t *testing.T) {
	c := caps(2, 3, useWindowSize)

	for _, size := range [][2]int{{0, 0}, {-5, 20}, {640, 480}, {5000, 5000}, {4096, 1}, {1, 9999}} {
		got := ChooseExtent(c, size[0], size[1])
		if got.Width < c.MinImageExtent.Width || got.Width > c.MaxImageExtent.Width ||
			got.Height < c.MinImageExtent.Height || got.Height > c.MaxImageExtent.Height {
			t.Errorf("ChooseExtent(%v) = %v, outside [%v, %v]", size, got, c.MinImageExtent, c.MaxImageExtent)
		}
	}

	if got := ChooseExtent(c, 640, 480); got != (core1_0.Extent2D{Width: 640, Height: 480}) {
		t.Errorf("ChooseExtent(640x480) = %v, want unchanged", got)
	}
}

func TestCheckUsage(t *testing.T) {
	c := caps(2, 3, useWindowSize)

	if err := CheckUsage(c, core1_0.ImageUsageColorAttachment); err != nil {
		t.Errorf("CheckUsage(color attachment) error = %v", err)
	}

	err := CheckUsage(c, core1_0.ImageUsageColorAttachment|core1_0.ImageUsageStorage)
	if !errors.Is(err, gfxerr.ErrUnsupportedUsage) {
		t.Fatalf("CheckUsage(storage) error = %v, want ErrUnsupportedUsage", err)
	}
	if !errors.Is(err, gfxerr.ErrCapability) {
		t.Errorf("CheckUsage(storage) kind = %s, want capability", gfxerr.Kind(err))
	}
}

func TestChooseTransform(t *testing.T) {
	c := caps(2, 3, useWindowSize)
	c.SupportedTransforms = khr_surface.TransformRotate90
	c.CurrentTransform = khr_surface.TransformRotate90

	got, fallback := ChooseTransform(c, khr_surface.TransformIdentity)
	if got != khr_surface.TransformRotate90 || !fallback {
		t.Errorf("ChooseTransform() = %v, %v; want current transform with fallback", got, fallback)
	}

	c.SupportedTransforms |= khr_surface.TransformIdentity
	got, fallback = ChooseTransform(c, khr_surface.TransformIdentity)
	if got != khr_surface.TransformIdentity || fallback {
		t.Errorf("ChooseTransform() = %v, %v; want identity without fallback", got, fallback)
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	unorm := khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8UnsignedNormalized, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear}
	srgbOther := khr_surface.SurfaceFormat{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpace(1000104001)}

	tests := []struct {
		name    string
		formats []khr_surface.SurfaceFormat
		want    khr_surface.SurfaceFormat
		ok      bool
	}{
		{name: "exact pair", formats: []khr_surface.SurfaceFormat{unorm, srgb}, want: srgb, ok: true},
		{name: "undefined takes preferred", formats: []khr_surface.SurfaceFormat{{Format: core1_0.FormatUndefined}}, want: srgb, ok: true},
		{name: "pixel format in other space", formats: []khr_surface.SurfaceFormat{unorm, srgbOther}, want: srgbOther, ok: true},
		{name: "first offered", formats: []khr_surface.SurfaceFormat{unorm}, want: unorm, ok: true},
		{name: "none", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChooseSurfaceFormat(tt.formats, srgb)
			if ok != tt.ok {
				t.Fatalf("ChooseSurfaceFormat() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("ChooseSurfaceFormat() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	modes := []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeMailbox}

	if got, fallback := ChoosePresentMode(modes, khr_surface.PresentModeMailbox); got != khr_surface.PresentModeMailbox || fallback {
		t.Errorf("ChoosePresentMode(mailbox) = %v, %v", got, fallback)
	}
	if got, fallback := ChoosePresentMode(modes, khr_surface.PresentModeImmediate); got != khr_surface.PresentModeFIFO || !fallback {
		t.Errorf("ChoosePresentMode(immediate) = %v, %v; want FIFO fallback", got, fallback)
	}
	if got, fallback := ChoosePresentMode(nil, khr_surface.PresentModeFIFO); got != khr_surface.PresentModeFIFO || fallback {
		t.Errorf("ChoosePresentMode(FIFO) = %v, %v; want FIFO without fallback", got, fallback)
	}
}

func TestNegotiateUnsupportedModeScenario(t *testing.T) {
	support := Support{
		Capabilities: caps(2, 3, core1_0.Extent2D{Width: 800, Height: 600}),
		Formats:      []khr_surface.SurfaceFormat{srgb},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO},
	}
	cfg := config.Default()
	cfg.PresentMode = khr_surface.PresentModeMailbox

	got, err := Negotiate(support, cfg, 1280, 720)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if got.ImageCount != 3 {
		t.Errorf("ImageCount = %d, want 3", got.ImageCount)
	}
	if got.Extent != (core1_0.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("Extent = %v, want 800x600", got.Extent)
	}
	if got.PresentMode != khr_surface.PresentModeFIFO || !got.PresentModeFallback {
		t.Errorf("PresentMode = %v (fallback %v), want FIFO fallback", got.PresentMode, got.PresentModeFallback)
	}
}

func TestNegotiateMissingUsage(t *testing.T) {
	support := Support{
		Capabilities: caps(2, 3, useWindowSize),
		Formats:      []khr_surface.SurfaceFormat{srgb},
	}
	cfg := config.Default()
	cfg.ImageUsage = core1_0.ImageUsageColorAttachment | core1_0.ImageUsageSampled

	got, err := Negotiate(support, cfg, 640, 480)
	if !errors.Is(err, gfxerr.ErrCapability) {
		t.Fatalf("Negotiate() error = %v, want capability", err)
	}
	if got != (Negotiated{}) {
		t.Errorf("Negotiate() = %+v, want zero value on failure", got)
	}
}

func TestNegotiateNoFormats(t *testing.T) {
	_, err := Negotiate(Support{Capabilities: caps(2, 3, useWindowSize)}, config.Default(), 640, 480)
	if !errors.Is(err, gfxerr.ErrCapability) {
		t.Errorf("Negotiate() error = %v, want capability", err)
	}
}

func TestNegotiateDeterministic(t *testing.T) {
	support := Support{
		Capabilities: caps(2, 0, useWindowSize),
		Formats:      []khr_surface.SurfaceFormat{srgb},
		PresentModes: []khr_surface.PresentMode{khr_surface.PresentModeFIFO, khr_surface.PresentModeFIFORelaxed},
	}
	cfg := config.Default()

	first, err := Negotiate(support, cfg, 1024, 768)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	second, err := Negotiate(support, cfg, 1024, 768)
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if first != second {
		t.Errorf("Negotiate() not deterministic: %+v then %+v", first, second)
	}
	if first.Format != srgb || first.ImageCount != 3 || first.Extent != (core1_0.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("Negotiate() = %+v", first)
	}
}
