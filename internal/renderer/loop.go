package renderer

import (
	"context"
	"time"

	"github.com/vkngwrapper/present/internal/frame"
	"github.com/vkngwrapper/present/internal/gfxerr"
	"github.com/vkngwrapper/present/internal/logging"
	"github.com/vkngwrapper/present/internal/platform"
)

// minimizedPoll is how often a minimized window is checked for events.
const minimizedPoll = 16 * time.Millisecond

type frameDriver interface {
	Draw() (frame.Outcome, error)
	Recreate(width, height int) error
}

// loop polls the window, then draws. Quit is only honored between frames,
// never in the middle of one.
func loop(ctx context.Context, window platform.Window, frames frameDriver) error {
	minimized := window.Minimized()

	recreate := func() error {
		width, height := window.DrawableSize()
		if width <= 0 || height <= 0 || window.Minimized() {
			minimized = true
			return nil
		}
		minimized = false
		return frames.Recreate(width, height)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		events := window.Poll()
		if events.Quit {
			return nil
		}
		if events.Minimized {
			minimized = true
		}
		if events.Resized || events.Restored {
			if err := recreate(); err != nil {
				return err
			}
		}

		if minimized {
			select {
			case <-ctx.Done():
			case <-time.After(minimizedPoll):
			}
			continue
		}

		out, err := frames.Draw()
		if gfxerr.IsStale(err) {
			logging.Logger().Debug("renderer: surface out of date, recreating swapchain", "error", err)
			if err := recreate(); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}

		if out.Suboptimal {
			logging.Logger().Debug("renderer: swapchain suboptimal, recreating")
			if err := recreate(); err != nil {
				return err
			}
		}
	}
}
