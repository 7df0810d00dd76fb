package frame

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

// fakeGPU completes a slot's work only when someone waits on its fence, so
// every submission stays pending as long as the protocol allows.
type fakeGPU struct {
	t        *testing.T
	signaled []bool
	images   []int
	acquires int

	staleAcquireAt  int
	stalePresentAt  int
	suboptimalAt    int
	failSubmit      error
	maxUnsignaled   int
	presents        int
	submittedImages map[int]int

	log []string
}

func newFakeGPU(t *testing.T, slots int, images ...int) *fakeGPU {
	g := &fakeGPU{
		t:               t,
		signaled:        make([]bool, slots),
		images:          images,
		staleAcquireAt:  -1,
		stalePresentAt:  -1,
		suboptimalAt:    -1,
		submittedImages: map[int]int{},
	}
	for i := range g.signaled {
		g.signaled[i] = true
	}
	return g
}

func (g *fakeGPU) logf(format string, args ...interface{}) {
	g.log = append(g.log, fmt.Sprintf(format, args...))
}

func (g *fakeGPU) unsignaled() int {
	n := 0
	for _, s := range g.signaled {
		if !s {
			n++
		}
	}
	return n
}

func (g *fakeGPU) WaitFence(slot int) error {
	g.logf("wait %d", slot)
	g.signaled[slot] = true
	return nil
}

func (g *fakeGPU) ResetFence(slot int) error {
	if !g.signaled[slot] {
		g.t.Errorf("reset of slot %d whose fence was never waited on", slot)
	}
	g.logf("reset %d", slot)
	g.signaled[slot] = false
	if n := g.unsignaled(); n > g.maxUnsignaled {
		g.maxUnsignaled = n
	}
	return nil
}

func (g *fakeGPU) Acquire(slot int) (int, bool, error) {
	call := g.acquires
	g.acquires++
	if call == g.staleAcquireAt {
		g.logf("acquire %d stale", slot)
		return -1, false, gfxerr.Stale(nil, "out of date")
	}
	image := g.images[call%len(g.images)]
	g.logf("acquire %d -> %d", slot, image)
	return image, call == g.suboptimalAt, nil
}

func (g *fakeGPU) Submit(slot, image int) error {
	if g.failSubmit != nil {
		return g.failSubmit
	}
	if g.signaled[slot] {
		g.t.Errorf("submit on slot %d with a signaled fence", slot)
	}
	g.logf("submit %d %d", slot, image)
	g.submittedImages[image] = slot
	return nil
}

func (g *fakeGPU) Present(slot, image int) (bool, error) {
	call := g.presents
	g.presents++
	if call == g.stalePresentAt {
		return false, gfxerr.Stale(nil, "out of date")
	}
	g.logf("present %d %d", slot, image)
	return false, nil
}

func (g *fakeGPU) indexOf(entry string, from int) int {
	for i := from; i < len(g.log); i++ {
		if g.log[i] == entry {
			return i
		}
	}
	return -1
}

func TestDrawProtocolOrder(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0)
	s := NewSynchronizer(gpu, 2, 3)

	out, err := s.Draw()
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if out.Slot != 0 || out.Image != 0 || out.Suboptimal {
		t.Errorf("Draw() = %+v", out)
	}

	want := "wait 0|acquire 0 -> 0|reset 0|submit 0 0|present 0 0"
	if got := strings.Join(gpu.log, "|"); got != want {
		t.Errorf("Draw() log = %s, want %s", got, want)
	}
	if s.Current() != 1 {
		t.Errorf("Current() = %d, want 1", s.Current())
	}
}

func TestInFlightFencesBounded(t *testing.T) {
	gpu := newFakeGPU(t, config.MaxFramesInFlight, 0, 1, 2, 2, 1, 0, 1)
	s := NewSynchronizer(gpu, config.MaxFramesInFlight, 3)

	for i := 0; i < 200; i++ {
		if _, err := s.Draw(); err != nil {
			t.Fatalf("Draw() #%d error = %v", i, err)
		}
		if n := gpu.unsignaled(); n > config.MaxFramesInFlight {
			t.Fatalf("after frame %d, %d fences unsignaled", i, n)
		}
	}
	if gpu.maxUnsignaled > config.MaxFramesInFlight {
		t.Errorf("max unsignaled fences = %d, want <= %d", gpu.maxUnsignaled, config.MaxFramesInFlight)
	}
	if got := s.Stats().Frames; got != 200 {
		t.Errorf("Stats().Frames = %d, want 200", got)
	}
}

func TestImageTableSingleOwner(t *testing.T) {
	gpu := newFakeGPU(t, 2, 2, 0, 2, 1, 1, 0)
	s := NewSynchronizer(gpu, 2, 3)

	for i := 0; i < 30; i++ {
		out, err := s.Draw()
		if err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
		if owner := s.Images().Owner(out.Image); owner != out.Slot {
			t.Fatalf("Owner(%d) = %d, want slot %d", out.Image, owner, out.Slot)
		}
		for image := 0; image < s.Images().Len(); image++ {
			owner := s.Images().Owner(image)
			if owner == NoSlot {
				continue
			}
			if last, ok := gpu.submittedImages[image]; !ok || last != owner {
				t.Fatalf("Owner(%d) = %d, but last submission came from slot %d", image, owner, last)
			}
		}
	}
}

func TestHazardWait(t *testing.T) {
	tests := []struct {
		name   string
		slots  int
		images []int
		// the frame that must wait on owner before claiming
		frame, slot, owner int
	}{
		{name: "consecutive frames share an image", slots: 2, images: []int{1, 1}, frame: 1, slot: 1, owner: 0},
		{name: "third slot still pending", slots: 3, images: []int{2, 0, 2}, frame: 2, slot: 2, owner: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpu := newFakeGPU(t, tt.slots, tt.images...)
			s := NewSynchronizer(gpu, tt.slots, 3)

			for i := 0; i <= tt.frame; i++ {
				if _, err := s.Draw(); err != nil {
					t.Fatalf("Draw() #%d error = %v", i, err)
				}
			}

			image := tt.images[tt.frame]
			acquired := gpu.indexOf(fmt.Sprintf("acquire %d -> %d", tt.slot, image), 0)
			waited := gpu.indexOf(fmt.Sprintf("wait %d", tt.owner), acquired)
			reset := gpu.indexOf(fmt.Sprintf("reset %d", tt.slot), acquired)
			if acquired < 0 || waited < 0 || reset < 0 || waited > reset {
				t.Errorf("log %v: want wait on slot %d between acquire and reset of slot %d", gpu.log, tt.owner, tt.slot)
			}
			if got := s.Stats().ForeignOwnerWaits; got != 1 {
				t.Errorf("Stats().ForeignOwnerWaits = %d, want 1", got)
			}
		})
	}
}

func TestSameSlotNoHazardWait(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0, 1)
	s := NewSynchronizer(gpu, 2, 2)

	for i := 0; i < 10; i++ {
		if _, err := s.Draw(); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
	}
	if got := s.Stats().ForeignOwnerWaits; got != 0 {
		t.Errorf("Stats().ForeignOwnerWaits = %d, want 0 when each image stays with one slot", got)
	}
}

func TestStaleAcquireSkipsFrame(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0, 1)
	gpu.staleAcquireAt = 1
	s := NewSynchronizer(gpu, 2, 2)

	if _, err := s.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	_, err := s.Draw()
	if !gfxerr.IsStale(err) {
		t.Fatalf("Draw() error = %v, want stale", err)
	}
	if s.Current() != 1 {
		t.Errorf("Current() = %d, want slot 1 kept after stale acquire", s.Current())
	}
	if !gpu.signaled[1] {
		t.Error("fence of slot 1 was reset by a skipped frame")
	}
	if gpu.indexOf("reset 1", 0) >= 0 {
		t.Errorf("log %v: slot 1 reset after stale acquire", gpu.log)
	}

	s.Reset(2)
	if _, err := s.Draw(); err != nil {
		t.Fatalf("Draw() after reset error = %v", err)
	}
	if got := s.Stats().StaleEvents; got != 1 {
		t.Errorf("Stats().StaleEvents = %d, want 1", got)
	}
}

func TestStalePresentAdvances(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0)
	gpu.stalePresentAt = 0
	s := NewSynchronizer(gpu, 2, 1)

	if _, err := s.Draw(); !gfxerr.IsStale(err) {
		t.Fatalf("Draw() error = %v, want stale", err)
	}
	if s.Current() != 1 {
		t.Errorf("Current() = %d, want 1 after submitted frame", s.Current())
	}
	if s.Stats().Frames != 0 {
		t.Errorf("Stats().Frames = %d, want 0", s.Stats().Frames)
	}
}

func TestSubmitFailureIsFatal(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0)
	gpu.failSubmit = errors.New("device lost")
	s := NewSynchronizer(gpu, 2, 1)

	_, err := s.Draw()
	if !errors.Is(err, gfxerr.ErrSubmission) {
		t.Errorf("Draw() error = %v, want submission", err)
	}
	if gfxerr.IsStale(err) {
		t.Error("submit failure reported as stale")
	}
}

func TestSuboptimalAcquireStillPresents(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0)
	gpu.suboptimalAt = 0
	s := NewSynchronizer(gpu, 2, 1)

	out, err := s.Draw()
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if !out.Suboptimal {
		t.Error("Outcome.Suboptimal = false, want true")
	}
	if gpu.indexOf("present 0 0", 0) < 0 {
		t.Errorf("log %v: frame not presented", gpu.log)
	}
}

func TestImageOutOfRange(t *testing.T) {
	gpu := newFakeGPU(t, 2, 5)
	s := NewSynchronizer(gpu, 2, 3)

	if _, err := s.Draw(); !errors.Is(err, gfxerr.ErrSubmission) {
		t.Errorf("Draw() error = %v, want submission", err)
	}
}

func TestLongestWait(t *testing.T) {
	gpu := newFakeGPU(t, 2, 0)
	s := NewSynchronizer(gpu, 2, 1)

	now := time.Duration(100)
	s.clock = func() time.Duration {
		now += 5 * time.Millisecond
		return now
	}

	if _, err := s.Draw(); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if got := s.Stats().LongestWait; got != 5*time.Millisecond {
		t.Errorf("Stats().LongestWait = %v, want 5ms", got)
	}
	if _, waiting := s.WaitingSince(); waiting {
		t.Error("WaitingSince() reports a wait after Draw returned")
	}
}
