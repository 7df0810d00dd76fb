// Package renderer brings the presentation pipeline up, runs the frame loop
// and tears everything down again.
package renderer

import (
	"context"
	"io/fs"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/present/internal/commands"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/device"
	"github.com/vkngwrapper/present/internal/frame"
	"github.com/vkngwrapper/present/internal/gfxerr"
	"github.com/vkngwrapper/present/internal/logging"
	"github.com/vkngwrapper/present/internal/pipeline"
	"github.com/vkngwrapper/present/internal/platform"
	"github.com/vkngwrapper/present/internal/probe"
	"github.com/vkngwrapper/present/internal/swapchain"
	"github.com/vkngwrapper/present/internal/targets"
	"github.com/vkngwrapper/present/shaders"
	"golang.org/x/sync/errgroup"
)

// Renderer owns every GPU object. Fields are in creation order; Close
// destroys them bottom up.
type Renderer struct {
	cfg    config.PresentationConfig
	window platform.Window

	instance         core1_0.CoreInstanceDriver
	messenger        *probe.Messenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
	device           *device.Context

	swapchains *swapchain.Manager
	chain      *swapchain.Chain
	targets    *targets.Set
	shaders    *pipeline.Builder
	pipeline   *pipeline.Pipeline
	commands   *commands.Pool

	slots   []frame.Slot
	backend *frame.VulkanBackend
	sync    *frame.Synchronizer
}

// New runs bring-up against window. On failure everything created so far is
// destroyed and a single error describing the cause is returned.
func New(window platform.Window, cfg config.PresentationConfig) (*Renderer, error) {
	r := &Renderer{cfg: cfg, window: window}
	if err := r.init(); err != nil {
		r.Close()
		return nil, errors.Wrap(err, "renderer: initialization failed")
	}
	return r, nil
}

func (r *Renderer) init() error {
	global, err := r.window.VulkanDriver()
	if err != nil {
		return gfxerr.Discovery(err, "vulkan: load driver")
	}

	report, err := probe.Probe(global, r.window.InstanceExtensions(), r.cfg)
	if err != nil {
		return err
	}

	r.instance, err = probe.CreateInstance(global, report)
	if err != nil {
		return err
	}
	r.messenger = probe.NewMessenger(r.instance, report)

	r.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(r.instance)
	r.surface, err = r.window.CreateSurface(r.instance.Instance(), r.surfaceExtension)
	if err != nil {
		return gfxerr.Resource(err, "vulkan: failed to create window surface")
	}

	r.device, err = device.Create(r.instance, r.surfaceExtension, r.surface, r.cfg)
	if err != nil {
		return err
	}

	r.swapchains = swapchain.NewManager(r.device, r.surfaceExtension, r.surface, r.cfg)
	width, height := r.window.DrawableSize()
	r.chain, err = r.swapchains.Create(width, height, nil)
	if err != nil {
		return err
	}

	r.shaders, err = pipeline.NewBuilder(r.device.Driver, shaderSource(r.cfg.ShaderDir))
	if err != nil {
		return err
	}

	r.commands, err = commands.NewPool(r.device)
	if err != nil {
		return err
	}

	r.slots, err = frame.CreateSlots(r.device.Driver, config.MaxFramesInFlight)
	if err != nil {
		return err
	}
	r.backend = frame.NewVulkanBackend(r.device, r.swapchains.Extension(), r.slots)
	r.sync = frame.NewSynchronizer(r.backend, config.MaxFramesInFlight, r.chain.ImageCount())

	return r.buildDependents()
}

// shaderSource reads SPIR-V from dir, or from the binary itself when dir is
// empty.
func shaderSource(dir string) fs.FS {
	if dir == "" {
		return shaders.FS
	}
	return os.DirFS(dir)
}

// buildDependents creates everything derived from the current chain.
func (r *Renderer) buildDependents() error {
	var err error

	r.targets, err = targets.New(r.device.Driver, r.chain.Format.Format, r.chain.Views, r.chain.Extent)
	if err != nil {
		return err
	}

	r.pipeline, err = r.shaders.Build(r.targets.RenderPass, r.chain.Extent)
	if err != nil {
		return err
	}

	err = r.commands.Record(r.targets.RenderPass, r.pipeline.Pipeline, r.targets.Framebuffers, r.chain.Extent, r.cfg.ClearColor)
	if err != nil {
		return err
	}

	r.backend.Bind(r.chain.Swapchain, r.commands.Buffers)
	r.sync.Reset(r.chain.ImageCount())
	return nil
}

func (r *Renderer) destroyDependents() {
	r.commands.Free()
	r.pipeline.Destroy()
	r.pipeline = nil
	r.targets.Destroy()
	r.targets = nil
}

// Draw renders one frame.
func (r *Renderer) Draw() (frame.Outcome, error) {
	return r.sync.Draw()
}

// Recreate replaces the swapchain and everything built on it for a drawable
// of width x height.
func (r *Renderer) Recreate(width, height int) error {
	if err := r.device.WaitIdle(); err != nil {
		return err
	}
	r.destroyDependents()

	var err error
	r.chain, err = r.swapchains.Recreate(width, height, r.chain)
	if err != nil {
		return err
	}
	return r.buildDependents()
}

// Run drives the frame loop until ctx is done, the window is closed or a
// frame fails for a reason other than a stale surface.
func (r *Renderer) Run(ctx context.Context) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	group, watchCtx := errgroup.WithContext(watchCtx)
	group.Go(func() error {
		return frame.NewWatchdog(r.sync, r.cfg.MaxFenceWait).Run(watchCtx)
	})

	err := loop(ctx, r.window, r)

	stopWatch()
	if waitErr := group.Wait(); err == nil {
		err = waitErr
	}

	stats := r.sync.Stats()
	logging.Logger().Info("renderer: loop finished",
		"frames", stats.Frames,
		"foreign_owner_waits", stats.ForeignOwnerWaits,
		"stale_events", stats.StaleEvents,
		"longest_wait", stats.LongestWait)

	if drainErr := r.device.WaitIdle(); err == nil {
		err = drainErr
	}
	return err
}

// Close waits for the device to drain and destroys everything in reverse
// creation order. Safe after a partial New.
func (r *Renderer) Close() {
	if err := r.device.WaitIdle(); err != nil {
		logging.Logger().Error("renderer: wait idle before teardown", "error", err)
	}

	if r.device != nil {
		frame.DestroySlots(r.device.Driver, r.slots)
		r.slots = nil
		r.commands.Destroy()
		r.commands = nil
		r.destroyDependents()
	}
	if r.swapchains != nil {
		r.swapchains.Destroy(r.chain)
		r.chain = nil
	}
	r.device.Destroy()

	if r.surface.Initialized() {
		r.surfaceExtension.DestroySurface(r.surface, nil)
		r.surface = khr_surface.Surface{}
	}
	r.messenger.Destroy()
	if r.instance != nil {
		r.instance.DestroyInstance(nil)
		r.instance = nil
	}
}
