// Command present opens a window and renders a triangle into it through a
// Vulkan swapchain until the window is closed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/logging"
	"github.com/vkngwrapper/present/internal/platform"
	"github.com/vkngwrapper/present/internal/renderer"
)

func init() {
	// SDL and the Vulkan surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.New(os.Stderr, cfg.Level())
	logging.SetLogger(logger)
	logger.Info("starting", "present_mode", cfg.PresentMode, "validation", cfg.Validation)

	if err := run(cfg); err != nil {
		logger.Error("fatal", "error", fmt.Sprintf("%+v", err))
		platform.ShowError(config.AppName, err.Error())
		os.Exit(1)
	}
}

func run(cfg config.PresentationConfig) error {
	window, err := platform.NewSDLWindow(cfg)
	if err != nil {
		return err
	}
	defer window.Destroy()

	r, err := renderer.New(window, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return r.Run(ctx)
}
