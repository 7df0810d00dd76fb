// Package probe discovers what the Vulkan loader offers and decides which
// instance extensions and layers the pipeline will enable.
package probe

import (
	"sort"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/gfxerr"
	"github.com/vkngwrapper/present/internal/logging"
)

// Loader is the read-only part of the global driver the probe needs.
// core1_0.GlobalDriver satisfies it.
type Loader interface {
	AvailableExtensions() (map[string]*core1_0.ExtensionProperties, common.VkResult, error)
	AvailableLayers() (map[string]*core1_0.LayerProperties, common.VkResult, error)
}

type versionedLoader interface {
	APIVersion() common.APIVersion
}

// Report is the outcome of a probe: everything CreateInstance needs.
type Report struct {
	APIVersion    common.APIVersion
	Extensions    []string
	Layers        []string
	MissingLayers []string
	DebugUtils    bool
	Portability   bool
}

// Probe checks that every extension the window and the config require is
// available and selects the requested layers that exist. Layers are optional:
// missing ones are reported, not fatal.
func Probe(loader Loader, windowExtensions []string, cfg config.PresentationConfig) (Report, error) {
	report := Report{APIVersion: common.Vulkan1_0}
	if v, ok := loader.(versionedLoader); ok {
		report.APIVersion = v.APIVersion()
		if report.APIVersion > common.Vulkan1_2 {
			report.APIVersion = common.Vulkan1_2
		}
	}

	extensions, _, err := loader.AvailableExtensions()
	if err != nil {
		return report, gfxerr.Discovery(err, "vulkan: api not supported")
	}
	logging.Logger().Debug("vulkan: found available extensions", "count", len(extensions))

	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			report.Extensions = append(report.Extensions, name)
		}
	}

	required := append(append([]string{}, windowExtensions...), cfg.RequiredExtensions...)
	var missing []string
	for _, ext := range required {
		if _, ok := extensions[ext]; !ok {
			missing = append(missing, ext)
			continue
		}
		add(ext)
	}
	if len(missing) > 0 {
		return report, gfxerr.Capability(gfxerr.ErrMissingExtension, "instance extensions %v", missing)
	}

	if cfg.Validation {
		if _, ok := extensions[ext_debug_utils.ExtensionName]; ok {
			add(ext_debug_utils.ExtensionName)
			report.DebugUtils = true
		} else {
			logging.Logger().Warn("vulkan: debug utils unavailable, validation messages will not be logged")
		}
	}

	if _, ok := extensions[khr_portability_enumeration.ExtensionName]; ok {
		add(khr_portability_enumeration.ExtensionName)
		report.Portability = true
	}

	if len(cfg.RequestedLayers) > 0 {
		layers, _, err := loader.AvailableLayers()
		if err != nil {
			return report, gfxerr.Discovery(err, "vulkan: enumerate instance layers")
		}
		logging.Logger().Debug("vulkan: found available layers", "count", len(layers))

		for _, layer := range cfg.RequestedLayers {
			if _, ok := layers[layer]; ok {
				report.Layers = append(report.Layers, layer)
				logging.Logger().Info("vulkan: enabling layer", "layer", layer)
			} else {
				report.MissingLayers = append(report.MissingLayers, layer)
			}
		}
		if len(report.MissingLayers) > 0 {
			logging.Logger().Warn("vulkan: could not find all validation layers", "missing", report.MissingLayers)
		}
	}

	sort.Strings(report.Extensions)
	return report, nil
}
