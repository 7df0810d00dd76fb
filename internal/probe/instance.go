package probe

import (
	"context"
	"log/slog"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/present/internal/config"
	"github.com/vkngwrapper/present/internal/gfxerr"
	"github.com/vkngwrapper/present/internal/logging"
)

// CreateInstance creates the Vulkan instance described by report. When the
// report enables debug utils, the messenger create info is chained in so
// instance creation and destruction are covered too.
func CreateInstance(global core1_0.GlobalDriver, report Report) (core1_0.CoreInstanceDriver, error) {
	info := core1_0.InstanceCreateInfo{
		ApplicationName:       config.AppName,
		ApplicationVersion:    common.CreateVersion(1, 0, 0),
		EngineName:            config.EngineName,
		EngineVersion:         common.CreateVersion(1, 0, 0),
		APIVersion:            report.APIVersion,
		EnabledExtensionNames: report.Extensions,
		EnabledLayerNames:     report.Layers,
	}

	if report.Portability {
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}
	if report.DebugUtils {
		info.Next = messengerCreateInfo()
	}

	driver, _, err := global.CreateInstance(nil, info)
	if err != nil {
		return nil, gfxerr.Resource(err, "vulkan: failed to create instance")
	}

	logging.Logger().Info("loaded vulkan", "version", report.APIVersion.String())
	return driver, nil
}

func messengerCreateInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

// SeverityLevel maps a debug-utils severity onto a log level.
func SeverityLevel(severity ext_debug_utils.DebugUtilsMessageSeverityFlags) slog.Level {
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		return slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		return slog.LevelWarn
	case severity&ext_debug_utils.SeverityInfo != 0:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	logging.Logger().Log(context.Background(), SeverityLevel(severity), "vulkan dbg msg", "type", msgType.String(), "message", data.Message)
	return false
}

// Messenger is the validation message sink. A nil *Messenger is valid and
// does nothing.
type Messenger struct {
	driver    ext_debug_utils.ExtensionDriver
	messenger ext_debug_utils.DebugUtilsMessenger
}

// NewMessenger installs the debug messenger. It is best effort: when debug
// utils are off or creation fails it logs and returns nil.
func NewMessenger(instance core1_0.CoreInstanceDriver, report Report) *Messenger {
	if !report.DebugUtils {
		return nil
	}

	driver := ext_debug_utils.CreateExtensionDriverFromCoreDriver(instance)
	messenger, _, err := driver.CreateDebugUtilsMessenger(nil, messengerCreateInfo())
	if err != nil {
		logging.Logger().Warn("vulkan: unable to create debug utils messenger", "err", err)
		return nil
	}

	return &Messenger{driver: driver, messenger: messenger}
}

func (m *Messenger) Destroy() {
	if m == nil || !m.messenger.Initialized() {
		return
	}
	m.driver.DestroyDebugUtilsMessenger(m.messenger, nil)
	m.messenger = ext_debug_utils.DebugUtilsMessenger{}
}
