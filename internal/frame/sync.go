// Package frame paces the CPU against the GPU. A fixed number of frame
// slots, each holding two semaphores and a fence, rotate round-robin while
// an image table keeps two slots from rendering into the same swapchain
// image at once.
package frame

import (
	"sync/atomic"
	"time"

	"github.com/loov/hrtime"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

// Backend performs the primitive operations of one frame. Slots and images
// are plain indices; the backend owns the objects behind them.
//
// Acquire and Present report an out of date surface as an error marked
// gfxerr.ErrStaleSurface.
type Backend interface {
	WaitFence(slot int) error
	ResetFence(slot int) error
	Acquire(slot int) (image int, suboptimal bool, err error)
	Submit(slot, image int) error
	Present(slot, image int) (suboptimal bool, err error)
}

type Stats struct {
	Frames uint64

	// ForeignOwnerWaits counts waits on another slot's fence before claiming
	// an image, whether or not that fence had already signaled.
	ForeignOwnerWaits uint64

	StaleEvents uint64
	LongestWait time.Duration
}

// Outcome describes a presented frame.
type Outcome struct {
	Slot  int
	Image int

	// Suboptimal means the frame was shown but the swapchain no longer
	// matches the surface exactly and should be recreated.
	Suboptimal bool
}

// Synchronizer drives the per-frame protocol. It is not safe for concurrent
// use, apart from WaitingSince.
type Synchronizer struct {
	backend Backend
	slots   int
	current int
	images  *ImageTable
	stats   Stats

	// waitStart is the hrtime of the fence wait in progress, or 0.
	waitStart atomic.Int64
	clock     func() time.Duration
}

func NewSynchronizer(backend Backend, slots, images int) *Synchronizer {
	return &Synchronizer{
		backend: backend,
		slots:   slots,
		images:  NewImageTable(images),
		clock:   hrtime.Now,
	}
}

// Current is the slot the next Draw uses.
func (s *Synchronizer) Current() int {
	return s.current
}

func (s *Synchronizer) Images() *ImageTable {
	return s.images
}

func (s *Synchronizer) Stats() Stats {
	return s.stats
}

// Reset starts over against a new swapchain with the given image count.
// The slot rotation carries on; every fence is signaled again once the
// device has drained.
func (s *Synchronizer) Reset(images int) {
	s.images.Reset(images)
}

// WaitingSince returns the start of the fence wait in progress.
func (s *Synchronizer) WaitingSince() (time.Duration, bool) {
	start := s.waitStart.Load()
	return time.Duration(start), start != 0
}

func (s *Synchronizer) wait(slot int) error {
	start := s.clock()
	if start == 0 {
		start = 1
	}
	s.waitStart.Store(int64(start))
	err := s.backend.WaitFence(slot)
	s.waitStart.Store(0)

	if elapsed := s.clock() - start; elapsed > s.stats.LongestWait {
		s.stats.LongestWait = elapsed
	}
	if err != nil {
		return gfxerr.Submission(err, "frame: wait for fence of slot %d", slot)
	}
	return nil
}

func (s *Synchronizer) advance() {
	s.current = (s.current + 1) % s.slots
}

// Draw runs one iteration: throttle on the slot fence, acquire an image,
// wait out any other slot still rendering into it, claim it, reset the
// fence, submit and present.
//
// A stale surface on acquire returns before anything is submitted and
// leaves the slot untouched. A stale surface on present returns after the
// slot has advanced, since the submission went through.
func (s *Synchronizer) Draw() (Outcome, error) {
	slot := s.current

	if err := s.wait(slot); err != nil {
		return Outcome{}, err
	}

	image, suboptimal, err := s.backend.Acquire(slot)
	if err != nil {
		if gfxerr.IsStale(err) {
			s.stats.StaleEvents++
			return Outcome{}, err
		}
		return Outcome{}, gfxerr.Submission(err, "frame: acquire for slot %d", slot)
	}
	if image < 0 || image >= s.images.Len() {
		return Outcome{}, gfxerr.Submission(nil, "frame: acquired image %d outside table of %d", image, s.images.Len())
	}

	if owner := s.images.Owner(image); owner != NoSlot && owner != slot {
		s.stats.ForeignOwnerWaits++
		if err := s.wait(owner); err != nil {
			return Outcome{}, err
		}
	}
	s.images.Claim(image, slot)

	if err := s.backend.ResetFence(slot); err != nil {
		return Outcome{}, gfxerr.Submission(err, "frame: reset fence of slot %d", slot)
	}
	if err := s.backend.Submit(slot, image); err != nil {
		return Outcome{}, gfxerr.Submission(err, "frame: submit image %d from slot %d", image, slot)
	}

	presentSuboptimal, err := s.backend.Present(slot, image)
	s.advance()
	if err != nil {
		if gfxerr.IsStale(err) {
			s.stats.StaleEvents++
			return Outcome{}, err
		}
		return Outcome{}, gfxerr.Submission(err, "frame: present image %d", image)
	}

	s.stats.Frames++
	return Outcome{
		Slot:       slot,
		Image:      image,
		Suboptimal: suboptimal || presentSuboptimal,
	}, nil
}
