package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector

	c.RecordOperation("get_stat", time.Millisecond, true)
	c.RecordError("get_stat", "IO_ERROR")
	c.MountStarted()
	c.MountStopped()
	assert.NoError(t, c.Stop(nil))
}

func TestDisabledCollectorIsSafe(t *testing.T) {
	c, err := NewCollector(&Config{Enabled: false})
	require.NoError(t, err)

	c.RecordOperation("read_data", time.Millisecond, false)
	c.RecordError("read_data", "FILE_NOT_FOUND")
	c.MountStarted()
	c.MountStopped()
	assert.NoError(t, c.Start(nil))
}

func TestEnabledCollectorRecords(t *testing.T) {
	c, err := NewCollector(&Config{
		Enabled:   true,
		Port:      0,
		Path:      "/metrics",
		Namespace: "vfskit_test",
	})
	require.NoError(t, err)

	c.RecordOperation("write_data", 2*time.Millisecond, true)
	c.RecordOperation("write_data", 3*time.Millisecond, false)
	c.RecordError("write_data", "READ_ONLY_FILESYSTEM")
	c.MountStarted()
	c.MountStopped()

	families, err := c.registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["vfskit_test_operations_total"])
	assert.True(t, names["vfskit_test_operation_duration_seconds"])
	assert.True(t, names["vfskit_test_errors_total"])
	assert.True(t, names["vfskit_test_active_mounts"])
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 9190, cfg.Port)
	assert.Equal(t, "/metrics", cfg.Path)
	assert.Equal(t, "vfskit", cfg.Namespace)
}
