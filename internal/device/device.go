// Package device owns the connection to the GPU: the chosen physical
// adapter, the logical device and its graphics and present queues.
package device

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/gfxerr"
	"github.com/vkngwrapper/present/internal/logging"
)

type AdapterInfo struct {
	Name       string
	APIVersion common.APIVersion
	CacheUUID  uuid.UUID
}

// Context is created once at startup and destroyed last.
type Context struct {
	Instance       core1_0.CoreInstanceDriver
	PhysicalDevice core1_0.PhysicalDevice
	Driver         core1_0.CoreDeviceDriver
	Adapter        AdapterInfo

	Families      QueueFamilyIndices
	GraphicsQueue core1_0.Queue
	PresentQueue  core1_0.Queue
}

// Create selects the first adapter that can render to surface and creates a
// logical device with one queue per distinct family.
func Create(instance core1_0.CoreInstanceDriver, surfaceExtension khr_surface.ExtensionDriver, surface khr_surface.Surface, cfg config.PresentationConfig) (*Context, error) {
	physicalDevices, _, err := instance.EnumeratePhysicalDevices()
	if err != nil {
		return nil, gfxerr.Discovery(err, "vulkan: enumerate physical devices")
	}
	logging.Logger().Info("vulkan: found physical devices", "count", len(physicalDevices))

	candidates := make([]Candidate, 0, len(physicalDevices))
	adapters := make([]AdapterInfo, 0, len(physicalDevices))
	for idx, physicalDevice := range physicalDevices {
		candidate, info := inspect(instance, surfaceExtension, surface, physicalDevice, cfg.DeviceExtensions)
		if candidate.Name == "" {
			candidate.Name = fmt.Sprintf("adapter %d", idx)
		}
		if candidate.QueryError != nil {
			logging.Logger().Warn("vulkan: skipping physical device", "name", candidate.Name, "error", candidate.QueryError)
		}
		logging.Logger().Info("vulkan: physical device",
			"name", info.Name,
			"api", info.APIVersion.String(),
			"cache_uuid", info.CacheUUID.String())

		candidates = append(candidates, candidate)
		adapters = append(adapters, info)
	}

	selected, indices, err := SelectAdapter(candidates)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		Instance:       instance,
		PhysicalDevice: physicalDevices[selected],
		Adapter:        adapters[selected],
		Families:       indices,
	}

	if err := ctx.createLogicalDevice(cfg.DeviceExtensions); err != nil {
		return nil, err
	}

	logging.Logger().Info("vulkan: selected adapter",
		"name", ctx.Adapter.Name,
		"graphics_family", indices.Graphics,
		"present_family", indices.Present)
	return ctx, nil
}

// inspect gathers what selection needs to know about one adapter. A failed
// query lands in Candidate.QueryError so the remaining adapters can still be
// considered.
func inspect(instance core1_0.CoreInstanceDriver, surfaceExtension khr_surface.ExtensionDriver, surface khr_surface.Surface, physicalDevice core1_0.PhysicalDevice, required []string) (Candidate, AdapterInfo) {
	props, err := instance.GetPhysicalDeviceProperties(physicalDevice)
	if err != nil {
		return Candidate{QueryError: errors.Wrap(err, "physical device properties")}, AdapterInfo{}
	}
	info := AdapterInfo{
		Name:       props.DeviceName,
		APIVersion: props.APIVersion,
		CacheUUID:  props.PipelineCacheUUID,
	}
	candidate := Candidate{Name: props.DeviceName}

	for idx, family := range instance.GetPhysicalDeviceQueueFamilyProperties(physicalDevice) {
		supported, _, err := surfaceExtension.GetPhysicalDeviceSurfaceSupport(surface, physicalDevice, idx)
		if err != nil {
			candidate.QueryError = errors.Wrapf(err, "surface support for family %d", idx)
			return candidate, info
		}
		candidate.Families = append(candidate.Families, FamilySupport{
			QueueCount: family.QueueCount,
			Graphics:   family.QueueFlags&core1_0.QueueGraphics != 0,
			Present:    supported,
		})
	}

	extensions, _, err := instance.EnumerateDeviceExtensionProperties(physicalDevice)
	if err != nil {
		candidate.QueryError = errors.Wrap(err, "device extension properties")
		return candidate, info
	}
	for _, ext := range required {
		if _, ok := extensions[ext]; !ok {
			candidate.MissingExtensions = append(candidate.MissingExtensions, ext)
		}
	}

	if len(candidate.MissingExtensions) == 0 {
		formats, _, err := surfaceExtension.GetPhysicalDeviceSurfaceFormats(surface, physicalDevice)
		if err != nil {
			candidate.QueryError = errors.Wrap(err, "surface formats")
			return candidate, info
		}
		modes, _, err := surfaceExtension.GetPhysicalDeviceSurfacePresentModes(surface, physicalDevice)
		if err != nil {
			candidate.QueryError = errors.Wrap(err, "surface present modes")
			return candidate, info
		}
		candidate.SurfaceAdequate = len(formats) > 0 && len(modes) > 0
	}

	return candidate, info
}

func (c *Context) createLogicalDevice(required []string) error {
	queuePriority := float32(1.0)
	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range c.Families.Unique() {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	extensionNames := append([]string{}, required...)

	// Portability implementations (MoltenVK) refuse device creation unless
	// the subset extension is enabled.
	extensions, _, err := c.Instance.EnumerateDeviceExtensionProperties(c.PhysicalDevice)
	if err != nil {
		return gfxerr.Discovery(err, "vulkan: unable to acquire device extension properties")
	}
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	for _, name := range extensionNames {
		logging.Logger().Debug("vulkan: enabling device extension", "extension", name)
	}

	c.Driver, _, err = c.Instance.CreateDevice(c.PhysicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueInfos,
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return gfxerr.Resource(err, "vulkan: failed to create logical device")
	}

	c.GraphicsQueue = c.Driver.GetQueue(c.Families.Graphics, 0)
	c.PresentQueue = c.Driver.GetQueue(c.Families.Present, 0)
	return nil
}

// WaitIdle blocks until every queue of the device has drained.
func (c *Context) WaitIdle() error {
	if c == nil || c.Driver == nil {
		return nil
	}
	_, err := c.Driver.DeviceWaitIdle()
	if err != nil {
		return gfxerr.Submission(err, "vulkan: wait for device idle")
	}
	return nil
}

// Destroy destroys the logical device. Everything created from it must
// already be gone.
func (c *Context) Destroy() {
	if c == nil || c.Driver == nil {
		return
	}
	c.Driver.DestroyDevice(nil)
	c.Driver = nil
}
