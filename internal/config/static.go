package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/varsh009/glowroot/internal/log"
)

// Environment variables understood by StaticConfigService, mirroring
// the teacher's env-var-per-field convention.
const (
	envEnabled            = "GLOWROOT_ENABLED"
	envMaxTraceEntries    = "GLOWROOT_MAX_TRACE_ENTRIES_PER_TRANSACTION"
	envCaptureThreadInfo  = "GLOWROOT_CAPTURE_THREAD_INFO"
	envCaptureGcInfo      = "GLOWROOT_CAPTURE_GC_INFO"
	envConfigFile         = "GLOWROOT_CONFIG_FILE"
)

const (
	defaultMaxTraceEntriesPerTransaction = 2000
)

// fileConfig is the YAML shape of an optional overlay config file
// pointed to by GLOWROOT_CONFIG_FILE. Every field is a pointer so that
// "absent from the file" and "explicitly false/zero" are distinguishable.
type fileConfig struct {
	General *struct {
		Enabled *bool `yaml:"enabled,omitempty"`
	} `yaml:"general,omitempty"`
	Advanced *struct {
		MaxTraceEntriesPerTransaction *int  `yaml:"maxTraceEntriesPerTransaction,omitempty"`
		CaptureThreadInfo             *bool `yaml:"captureThreadInfo,omitempty"`
		CaptureGcInfo                 *bool `yaml:"captureGcInfo,omitempty"`
	} `yaml:"advanced,omitempty"`
	Plugins map[string]pluginFileConfig `yaml:"plugins,omitempty"`
}

type pluginFileConfig struct {
	Enabled    *bool                  `yaml:"enabled,omitempty"`
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// StaticConfigService is a ConfigService backed by environment
// variables with an optional YAML overlay file, reloadable at runtime
// via Reload. The top-level Tracer does not construct one itself; a
// host without its own Service passes one to NewTracer.
type StaticConfigService struct {
	mu sync.RWMutex

	enabled                       bool
	maxTraceEntriesPerTransaction int
	captureThreadInfo             bool
	captureGcInfo                 bool

	plugins map[string]*staticPluginConfig

	listeners       []ConfigListener
	pluginListeners map[string][]ConfigListener
}

type staticPluginConfig struct {
	mu          sync.RWMutex
	enabled     bool
	stringProps map[string]string
	boolProps   map[string]bool
	doubleProps map[string]float64
}

// NewStaticConfigService loads configuration for the given plugin ids
// from the environment and, if GLOWROOT_CONFIG_FILE is set, from a YAML
// overlay file, returning a ready-to-use Service.
func NewStaticConfigService(pluginIDs []string) (*StaticConfigService, error) {
	s := &StaticConfigService{
		pluginListeners: make(map[string][]ConfigListener),
	}
	for _, id := range pluginIDs {
		s.ensurePlugin(id)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StaticConfigService) ensurePlugin(id string) *staticPluginConfig {
	if s.plugins == nil {
		s.plugins = make(map[string]*staticPluginConfig)
	}
	pc, ok := s.plugins[id]
	if !ok {
		pc = &staticPluginConfig{
			stringProps: make(map[string]string),
			boolProps:   make(map[string]bool),
			doubleProps: make(map[string]float64),
		}
		s.plugins[id] = pc
	}
	return pc
}

func (s *StaticConfigService) load() error {
	s.mu.Lock()
	s.enabled = boolEnv(envEnabled, true)
	s.maxTraceEntriesPerTransaction = intEnv(envMaxTraceEntries, defaultMaxTraceEntriesPerTransaction)
	s.captureThreadInfo = boolEnv(envCaptureThreadInfo, false)
	s.captureGcInfo = boolEnv(envCaptureGcInfo, false)
	for _, pc := range s.plugins {
		pc.mu.Lock()
		pc.enabled = true
		pc.mu.Unlock()
	}
	s.mu.Unlock()

	if path := os.Getenv(envConfigFile); path != "" {
		if err := s.loadFile(path); err != nil {
			return errors.Wrapf(err, "loading config file %s", path)
		}
	}
	return nil
}

func (s *StaticConfigService) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errors.Wrap(err, "parsing config file")
	}

	s.mu.Lock()
	if fc.General != nil && fc.General.Enabled != nil {
		s.enabled = *fc.General.Enabled
	}
	if fc.Advanced != nil {
		if fc.Advanced.MaxTraceEntriesPerTransaction != nil {
			s.maxTraceEntriesPerTransaction = *fc.Advanced.MaxTraceEntriesPerTransaction
		}
		if fc.Advanced.CaptureThreadInfo != nil {
			s.captureThreadInfo = *fc.Advanced.CaptureThreadInfo
		}
		if fc.Advanced.CaptureGcInfo != nil {
			s.captureGcInfo = *fc.Advanced.CaptureGcInfo
		}
	}
	s.mu.Unlock()

	for id, pfc := range fc.Plugins {
		pc := s.ensurePlugin(id)
		pc.mu.Lock()
		if pfc.Enabled != nil {
			pc.enabled = *pfc.Enabled
		}
		for k, v := range pfc.Properties {
			switch tv := v.(type) {
			case string:
				pc.stringProps[k] = tv
			case bool:
				pc.boolProps[k] = tv
			case float64:
				pc.doubleProps[k] = tv
			case int:
				pc.doubleProps[k] = float64(tv)
			default:
				log.Warnf("config file: plugin %s property %s has unsupported type %T", id, k, v)
			}
		}
		pc.mu.Unlock()
	}
	return nil
}

// Reload re-reads the environment and overlay file, then notifies every
// registered listener synchronously, regardless of whether anything
// actually changed — matching the teacher's onChange() semantics.
func (s *StaticConfigService) Reload() error {
	if err := s.load(); err != nil {
		return err
	}
	s.notifyAll()
	return nil
}

func (s *StaticConfigService) notifyAll() {
	s.mu.RLock()
	listeners := append([]ConfigListener{}, s.listeners...)
	pluginListeners := make(map[string][]ConfigListener, len(s.pluginListeners))
	for id, ls := range s.pluginListeners {
		pluginListeners[id] = append([]ConfigListener{}, ls...)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l.OnChange()
	}
	for _, ls := range pluginListeners {
		for _, l := range ls {
			l.OnChange()
		}
	}
}

// GeneralConfig implements Service.
func (s *StaticConfigService) GeneralConfig() GeneralConfig { return generalConfigView{s} }

// AdvancedConfig implements Service.
func (s *StaticConfigService) AdvancedConfig() AdvancedConfig { return advancedConfigView{s} }

// PluginConfig implements Service.
func (s *StaticConfigService) PluginConfig(pluginID string) (PluginConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.plugins[pluginID]
	if !ok {
		return nil, false
	}
	return pc, true
}

// AddConfigListener implements Service.
func (s *StaticConfigService) AddConfigListener(l ConfigListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// AddPluginConfigListener implements Service.
func (s *StaticConfigService) AddPluginConfigListener(pluginID string, l ConfigListener) {
	s.mu.Lock()
	s.pluginListeners[pluginID] = append(s.pluginListeners[pluginID], l)
	s.mu.Unlock()
}

// SetPluginStringProperty sets a string property directly (for tests
// and for hosts that configure plugins programmatically rather than
// via env/file) without requiring a Reload.
func (s *StaticConfigService) SetPluginStringProperty(pluginID, name, value string) {
	pc := s.pluginFor(pluginID)
	pc.mu.Lock()
	pc.stringProps[name] = value
	pc.mu.Unlock()
	s.notifyAll()
}

// SetPluginEnabled sets a plugin's enabled flag directly.
func (s *StaticConfigService) SetPluginEnabled(pluginID string, enabled bool) {
	pc := s.pluginFor(pluginID)
	pc.mu.Lock()
	pc.enabled = enabled
	pc.mu.Unlock()
	s.notifyAll()
}

// SetEnabled sets the general enabled flag directly.
func (s *StaticConfigService) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.notifyAll()
}

// SetMaxTraceEntriesPerTransaction sets the per-transaction entry cap
// directly.
func (s *StaticConfigService) SetMaxTraceEntriesPerTransaction(n int) {
	s.mu.Lock()
	s.maxTraceEntriesPerTransaction = n
	s.mu.Unlock()
	s.notifyAll()
}

func (s *StaticConfigService) pluginFor(pluginID string) *staticPluginConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensurePlugin(pluginID)
}

type generalConfigView struct{ s *StaticConfigService }

func (v generalConfigView) Enabled() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.enabled
}

type advancedConfigView struct{ s *StaticConfigService }

func (v advancedConfigView) MaxTraceEntriesPerTransaction() int {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.maxTraceEntriesPerTransaction
}

func (v advancedConfigView) CaptureThreadInfo() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.captureThreadInfo
}

func (v advancedConfigView) CaptureGcInfo() bool {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return v.s.captureGcInfo
}

// staticPluginConfig implements PluginConfig.
func (pc *staticPluginConfig) Enabled() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.enabled
}

func (pc *staticPluginConfig) GetStringProperty(name string) string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.stringProps[name]
}

func (pc *staticPluginConfig) GetBooleanProperty(name string) bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.boolProps[name]
}

func (pc *staticPluginConfig) GetDoubleProperty(name string) (float64, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	v, ok := pc.doubleProps[name]
	return v, ok
}

func boolEnv(name string, fallback bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Warnf("ignoring invalid bool env var %s=%s", name, v)
		return fallback
	}
	return b
}

func intEnv(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warnf("ignoring invalid int env var %s=%s", name, v)
		return fallback
	}
	return i
}
