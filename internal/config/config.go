// Package config defines the configuration surface the tracing engine
// consumes — general/advanced/per-plugin settings plus a change
// notification mechanism — and a concrete environment/YAML-backed
// implementation of it (StaticConfigService) used when there is no
// external config service wired in (tests, examples, and any host
// application that hasn't brought its own).
//
// The engine itself only ever depends on the interfaces in this file;
// spec §6 treats ConfigService as an external collaborator.
package config

// GeneralConfig holds settings that apply regardless of plugin.
type GeneralConfig interface {
	// Enabled reports whether tracing is turned on at all.
	Enabled() bool
}

// AdvancedConfig holds settings that govern engine internals rather
// than any particular plugin's behavior.
type AdvancedConfig interface {
	// MaxTraceEntriesPerTransaction is the cap described in spec §4.1.
	MaxTraceEntriesPerTransaction() int
	// CaptureThreadInfo reports whether the thread-info probe should run.
	CaptureThreadInfo() bool
	// CaptureGcInfo reports whether the GC-info probe should run.
	CaptureGcInfo() bool
}

// PluginConfig holds one plugin's enablement and custom properties.
type PluginConfig interface {
	// Enabled reports whether this plugin is individually enabled.
	Enabled() bool
	GetStringProperty(name string) string
	GetBooleanProperty(name string) bool
	// GetDoubleProperty returns (value, true) if name is set, or
	// (0, false) if it is not — spec's "empty/false/null" contract
	// for an unbound property translated to Go's zero-value idiom.
	GetDoubleProperty(name string) (float64, bool)
}

// ConfigListener is notified synchronously on any configuration
// mutation, on whatever goroutine performed the mutation.
type ConfigListener interface {
	OnChange()
}

// Service is the full configuration surface the facade depends on.
type Service interface {
	GeneralConfig() GeneralConfig
	AdvancedConfig() AdvancedConfig
	// PluginConfig returns the config for pluginID, or (nil, false) if
	// pluginID is not a known plugin.
	PluginConfig(pluginID string) (PluginConfig, bool)
	AddConfigListener(l ConfigListener)
	AddPluginConfigListener(pluginID string, l ConfigListener)
}
