package platform

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/logging"
)

// SDLWindow is a resizable Vulkan window. SDL must be driven from the
// thread that called NewSDLWindow.
type SDLWindow struct {
	window *sdl.Window
}

// NewSDLWindow initializes SDL video and opens the window.
func NewSDLWindow(cfg config.PresentationConfig) (*SDLWindow, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "sdl: init video")
	}

	window, err := sdl.CreateWindow(cfg.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.Width), int32(cfg.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl: create window")
	}

	logging.Logger().Info("sdl: window created", "title", cfg.Title, "width", cfg.Width, "height", cfg.Height)
	return &SDLWindow{window: window}, nil
}

func (w *SDLWindow) VulkanDriver() (core1_0.GlobalDriver, error) {
	driver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "sdl: load vulkan")
	}
	return driver, nil
}

func (w *SDLWindow) InstanceExtensions() []string {
	return w.window.VulkanGetInstanceExtensions()
}

func (w *SDLWindow) CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	surface, err := vkng_sdl2.CreateSurface(instance, surfaceExtension, w.window)
	if err != nil {
		return surface, errors.Wrap(err, "sdl: create surface")
	}
	return surface, nil
}

func (w *SDLWindow) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

func (w *SDLWindow) Minimized() bool {
	return w.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0
}

// Poll drains the SDL event queue.
func (w *SDLWindow) Poll() Events {
	var events Events
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			events.Quit = true
		case *sdl.WindowEvent:
			switch e.Event {
			case sdl.WINDOWEVENT_MINIMIZED:
				events.Minimized = true
			case sdl.WINDOWEVENT_RESTORED:
				events.Restored = true
			case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
				events.Resized = true
			}
		}
	}
	return events
}

// ShowError blocks on a message box parented to the window.
func (w *SDLWindow) ShowError(title, message string) {
	showError(title, message, w.window)
}

// ShowError blocks on a message box with no parent window. SDL allows this
// before Init and after Quit.
func ShowError(title, message string) {
	showError(title, message, nil)
}

func showError(title, message string, parent *sdl.Window) {
	if err := sdl.ShowSimpleMessageBox(sdl.MESSAGEBOX_ERROR, title, message, parent); err != nil {
		logging.Logger().Error("sdl: message box", "error", err)
	}
}

func (w *SDLWindow) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}
