package config

import (
	"flag"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

var presentModes = map[string]khr_surface.PresentMode{
	"immediate":    khr_surface.PresentModeImmediate,
	"mailbox":      khr_surface.PresentModeMailbox,
	"fifo":         khr_surface.PresentModeFIFO,
	"fifo-relaxed": khr_surface.PresentModeFIFORelaxed,
}

// PresentModeNames lists the names accepted by -present-mode.
func PresentModeNames() []string {
	names := make([]string, 0, len(presentModes))
	for name := range presentModes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParsePresentMode maps a flag value onto a present mode.
func ParsePresentMode(name string) (khr_surface.PresentMode, error) {
	mode, ok := presentModes[strings.ToLower(name)]
	if !ok {
		return 0, errors.Newf("unknown present mode %q (want one of %s)", name, strings.Join(PresentModeNames(), ", "))
	}
	return mode, nil
}

type listValue struct {
	target *[]string
}

func (l listValue) String() string {
	if l.target == nil {
		return ""
	}
	return strings.Join(*l.target, ",")
}

func (l listValue) Set(s string) error {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	*l.target = out
	return nil
}

// Parse overlays command-line flags onto Default and validates the result.
// Usage output goes to out.
func Parse(args []string, out io.Writer) (PresentationConfig, error) {
	cfg := Default()

	fs := flag.NewFlagSet("present", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	fs.IntVar(&cfg.Width, "width", cfg.Width, "window width in pixels")
	fs.IntVar(&cfg.Height, "height", cfg.Height, "window height in pixels")
	fs.StringVar(&cfg.ShaderDir, "shaders", cfg.ShaderDir, "directory holding vert.spv and frag.spv, overriding the built-in shaders")
	fs.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable validation layers and the debug messenger")
	fs.DurationVar(&cfg.MaxFenceWait, "max-wait", cfg.MaxFenceWait, "log a warning when a single fence wait exceeds this")
	fs.Var(listValue{&cfg.RequestedLayers}, "layers", "comma separated layers to enable when present")
	fs.Var(listValue{&cfg.RequiredExtensions}, "extensions", "comma separated instance extensions that must exist")

	presentMode := "fifo-relaxed"
	fs.StringVar(&presentMode, "present-mode", presentMode, "preferred present mode: "+strings.Join(PresentModeNames(), ", "))

	logLevel := "info"
	fs.StringVar(&logLevel, "log-level", logLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, errors.Newf("unrecognized arguments: %s", strings.Join(fs.Args(), " "))
	}

	mode, err := ParsePresentMode(presentMode)
	if err != nil {
		return cfg, err
	}
	cfg.PresentMode = mode

	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return cfg, errors.Wrapf(err, "log level")
	}
	if !cfg.Validation {
		cfg.RequestedLayers = nil
	}

	return cfg, cfg.Validate()
}

// Level is a convenience for callers that only need the log level.
func (c PresentationConfig) Level() slog.Leveler {
	return c.LogLevel
}
