package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingListener struct{ n int }

func (l *countingListener) OnChange() { l.n++ }

func TestStaticConfigServiceDefaults(t *testing.T) {
	os.Unsetenv(envEnabled)
	os.Unsetenv(envMaxTraceEntries)
	os.Unsetenv(envCaptureThreadInfo)
	os.Unsetenv(envCaptureGcInfo)
	os.Unsetenv(envConfigFile)

	s, err := NewStaticConfigService([]string{"sql"})
	require.NoError(t, err)

	assert.True(t, s.GeneralConfig().Enabled())
	assert.Equal(t, defaultMaxTraceEntriesPerTransaction, s.AdvancedConfig().MaxTraceEntriesPerTransaction())
	assert.False(t, s.AdvancedConfig().CaptureThreadInfo())

	pc, ok := s.PluginConfig("sql")
	require.True(t, ok)
	assert.True(t, pc.Enabled())

	_, ok = s.PluginConfig("nonexistent")
	assert.False(t, ok)
}

func TestStaticConfigServiceEnvOverrides(t *testing.T) {
	os.Setenv(envEnabled, "false")
	os.Setenv(envMaxTraceEntries, "50")
	defer os.Unsetenv(envEnabled)
	defer os.Unsetenv(envMaxTraceEntries)

	s, err := NewStaticConfigService(nil)
	require.NoError(t, err)
	assert.False(t, s.GeneralConfig().Enabled())
	assert.Equal(t, 50, s.AdvancedConfig().MaxTraceEntriesPerTransaction())
}

func TestStaticConfigServiceFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glowroot.yaml")
	yamlContent := `
general:
  enabled: true
advanced:
  maxTraceEntriesPerTransaction: 100
  captureThreadInfo: true
plugins:
  sql:
    enabled: false
    properties:
      explainThresholdMillis: 500
      captureBindParams: true
      label: slow-sql
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	os.Setenv(envConfigFile, path)
	defer os.Unsetenv(envConfigFile)

	s, err := NewStaticConfigService([]string{"sql"})
	require.NoError(t, err)

	assert.Equal(t, 100, s.AdvancedConfig().MaxTraceEntriesPerTransaction())
	assert.True(t, s.AdvancedConfig().CaptureThreadInfo())

	pc, ok := s.PluginConfig("sql")
	require.True(t, ok)
	assert.False(t, pc.Enabled())
	assert.True(t, pc.GetBooleanProperty("captureBindParams"))
	assert.Equal(t, "slow-sql", pc.GetStringProperty("label"))
	v, ok := pc.GetDoubleProperty("explainThresholdMillis")
	require.True(t, ok)
	assert.Equal(t, 500.0, v)

	_, ok = pc.GetDoubleProperty("missing")
	assert.False(t, ok)
}

func TestStaticConfigServiceListenersFireOnReloadAndSetters(t *testing.T) {
	os.Unsetenv(envConfigFile)
	s, err := NewStaticConfigService([]string{"sql"})
	require.NoError(t, err)

	general := &countingListener{}
	plugin := &countingListener{}
	s.AddConfigListener(general)
	s.AddPluginConfigListener("sql", plugin)

	require.NoError(t, s.Reload())
	assert.Equal(t, 1, general.n)
	assert.Equal(t, 1, plugin.n)

	s.SetEnabled(false)
	assert.Equal(t, 2, general.n)
	assert.Equal(t, 2, plugin.n)

	s.SetPluginStringProperty("sql", "label", "x")
	assert.Equal(t, 3, general.n)
	assert.Equal(t, 3, plugin.n)
}
