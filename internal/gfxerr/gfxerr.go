// Package gfxerr holds the error taxonomy shared by every stage of the
// presentation pipeline.
//
// Each failure carries exactly one kind mark. Callers test for the kind with
// errors.Is, regardless of how many times the error was wrapped on the way up:
//
//	if errors.Is(err, gfxerr.ErrStaleSurface) {
//	    // recreate the swapchain and keep going
//	}
package gfxerr

import (
	"github.com/cockroachdb/errors"
)

// Kinds.
var (
	ErrDiscovery        = errors.New("discovery error")
	ErrCapability       = errors.New("capability error")
	ErrResourceCreation = errors.New("resource creation error")
	ErrStaleSurface     = errors.New("stale surface")
	ErrSubmission       = errors.New("submission error")
)

// Named conditions. Each one is already marked with its kind.
var (
	ErrNoAdapter           = errors.Mark(errors.New("no physical device (GPU) found"), ErrDiscovery)
	ErrNoCompatibleDevice  = errors.Mark(errors.New("unable to find a compatible GPU"), ErrCapability)
	ErrUnsupportedUsage    = errors.Mark(errors.New("unsupported image usage"), ErrCapability)
	ErrMissingExtension    = errors.Mark(errors.New("missing required extension"), ErrCapability)
	ErrFramebufferCreation = errors.Mark(errors.New("failed to create framebuffer"), ErrResourceCreation)
)

var kinds = []struct {
	name string
	err  error
}{
	{"discovery", ErrDiscovery},
	{"capability", ErrCapability},
	{"resource", ErrResourceCreation},
	{"stale", ErrStaleSurface},
	{"submission", ErrSubmission},
}

func mark(kind error, err error, format string, args ...interface{}) error {
	if err == nil {
		return errors.Mark(errors.Newf(format, args...), kind)
	}
	return errors.Mark(errors.Wrapf(err, format, args...), kind)
}

// Discovery marks err (which may be nil) as a discovery failure.
func Discovery(err error, format string, args ...interface{}) error {
	return mark(ErrDiscovery, err, format, args...)
}

// Capability marks err (which may be nil) as a missing capability.
func Capability(err error, format string, args ...interface{}) error {
	return mark(ErrCapability, err, format, args...)
}

// Resource marks err (which may be nil) as a failed GPU object creation.
func Resource(err error, format string, args ...interface{}) error {
	return mark(ErrResourceCreation, err, format, args...)
}

// Stale marks err (which may be nil) as a recoverable out-of-date surface.
func Stale(err error, format string, args ...interface{}) error {
	return mark(ErrStaleSurface, err, format, args...)
}

// Submission marks err (which may be nil) as a fatal submit/present failure.
func Submission(err error, format string, args ...interface{}) error {
	return mark(ErrSubmission, err, format, args...)
}

// IsStale reports whether err can be recovered by recreating the swapchain.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleSurface)
}

// Kind names the first kind err is marked with, or "unknown".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "unknown"
}
