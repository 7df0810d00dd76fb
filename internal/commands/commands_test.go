package commands

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/present/internal/gfxerr"
)

type recorder struct {
	ops    []string
	failAt string
}

func (r *recorder) op(format string, args ...interface{}) error {
	op := fmt.Sprintf(format, args...)
	r.ops = append(r.ops, op)
	if op == r.failAt {
		return errors.New("recording failed")
	}
	return nil
}

func (r *recorder) Begin(idx int) error { return r.op("begin %d", idx) }

func (r *recorder) BeginRenderPass(idx int, extent core1_0.Extent2D, clear mgl32.Vec4) error {
	return r.op("pass %d %dx%d %v", idx, extent.Width, extent.Height, clear)
}

func (r *recorder) BindPipeline(idx int) { _ = r.op("bind %d", idx) }

func (r *recorder) Draw(idx int, vertexCount, instanceCount, firstVertex, firstInstance int) {
	_ = r.op("draw %d %d %d %d %d", idx, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (r *recorder) EndRenderPass(idx int) { _ = r.op("endpass %d", idx) }

func (r *recorder) End(idx int) error { return r.op("end %d", idx) }

func TestEncodeSequence(t *testing.T) {
	r := &recorder{}
	extent := core1_0.Extent2D{Width: 800, Height: 600}
	black := mgl32.Vec4{0, 0, 0, 1}

	if err := Encode(r, 2, extent, black); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	want := []string{
		"begin 0", "pass 0 800x600 [0 0 0 1]", "bind 0", "draw 0 3 1 0 0", "endpass 0", "end 0",
		"begin 1", "pass 1 800x600 [0 0 0 1]", "bind 1", "draw 1 3 1 0 0", "endpass 1", "end 1",
	}
	if !reflect.DeepEqual(r.ops, want) {
		t.Errorf("Encode() ops =\n%v\nwant\n%v", r.ops, want)
	}
}

func TestEncodeStopsOnFailure(t *testing.T) {
	tests := []struct {
		failAt string
		last   string
	}{
		{failAt: "begin 1", last: "begin 1"},
		{failAt: "pass 0 10x10 [0.5 0.5 0.5 1]", last: "pass 0 10x10 [0.5 0.5 0.5 1]"},
		{failAt: "end 2", last: "end 2"},
	}

	for _, tt := range tests {
		r := &recorder{failAt: tt.failAt}
		err := Encode(r, 3, core1_0.Extent2D{Width: 10, Height: 10}, mgl32.Vec4{0.5, 0.5, 0.5, 1})
		if !errors.Is(err, gfxerr.ErrResourceCreation) {
			t.Errorf("Encode() failing at %q error = %v, want resource", tt.failAt, err)
		}
		if got := r.ops[len(r.ops)-1]; got != tt.last {
			t.Errorf("Encode() continued past %q to %q", tt.failAt, got)
		}
	}
}

func TestEncodeNothing(t *testing.T) {
	r := &recorder{}
	if err := Encode(r, 0, core1_0.Extent2D{}, mgl32.Vec4{}); err != nil || len(r.ops) != 0 {
		t.Errorf("Encode(0) = %v with ops %v", err, r.ops)
	}
}
