package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/j-veylop/vehicle-dashboard/internal/models"
	"github.com/j-veylop/vehicle-dashboard/internal/services/vehicle"
)

// testEnv isolates configuration and returns a database path.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	for _, key := range []string{
		"VDASH_DATABASE_PATH", "VDASH_USER_ID", "VDASH_OCR_URL", "VDASH_OCR_TIMEOUT",
		"VDASH_WATCH_DEBOUNCE", "VDASH_WINDOW_DAYS", "VDASH_MONTH_ORDER",
		"VDASH_MQTT_BROKER", "VDASH_MQTT_USERNAME", "VDASH_MQTT_PASSWORD", "VDASH_MQTT_TOPIC_PREFIX",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("VDASH_TIMEZONE", "UTC")
	return filepath.Join(dir, "data", "vehicle.db")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_RecordAndStats(t *testing.T) {
	dbPath := testEnv(t)
	base := []string{"--db", dbPath, "--user", "alice"}

	out, err := run(t, append([]string{"add-reading", "1000"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Odometer reading added: 1,000")

	out, err = run(t, append([]string{"add-fuel", "--quantity", "20", "--price", "95.5"}, base...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Fuel entry added: 20 at 95.5 (total 1,910)")

	_, err = run(t, append([]string{"add-reading", "1300"}, base...)...)
	require.NoError(t, err)

	out, err = run(t, append([]string{"stats", "--format", "json"}, base...)...)
	require.NoError(t, err)

	var snap models.MetricsSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, 1300.0, snap.CurrentReading)
	assert.Equal(t, 300.0, snap.WindowDistance)
	assert.Equal(t, 20.0, snap.WindowFuel)
	assert.Equal(t, 1910.0, snap.WindowCost)
	assert.Equal(t, 15.0, snap.WindowEfficiency)
	assert.Equal(t, 2, snap.OdometerCount)
	assert.Equal(t, 1, snap.FuelCount)
}

func TestCLI_StatsFormats(t *testing.T) {
	dbPath := testEnv(t)
	base := []string{"--db", dbPath, "--user", "alice"}

	_, err := run(t, append([]string{"add-reading", "42000"}, base...)...)
	require.NoError(t, err)

	t.Run("Text", func(t *testing.T) {
		out, err := run(t, append([]string{"stats"}, base...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "Vehicle dashboard for alice")
		assert.Contains(t, out, "42,000")
		assert.Contains(t, out, "Last 30 days")
	})

	t.Run("YAML", func(t *testing.T) {
		out, err := run(t, append([]string{"stats", "-f", "yaml"}, base...)...)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
		assert.EqualValues(t, 42000, doc["current_reading"])
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		_, err := run(t, append([]string{"stats", "--format", "xml"}, base...)...)
		assert.Error(t, err)
	})

	t.Run("Now", func(t *testing.T) {
		// Far in the future the reading has left the trailing window
		future := time.Now().AddDate(1, 0, 0).UTC().Format(time.RFC3339)
		out, err := run(t, append([]string{"stats", "--format", "json", "--now", future}, base...)...)
		require.NoError(t, err)

		var snap models.MetricsSnapshot
		require.NoError(t, json.Unmarshal([]byte(out), &snap))
		assert.Equal(t, 42000.0, snap.CurrentReading)
		assert.Zero(t, snap.WindowDistance)
	})

	t.Run("BadNow", func(t *testing.T) {
		_, err := run(t, append([]string{"stats", "--now", "yesterday"}, base...)...)
		assert.Error(t, err)
	})
}

func TestCLI_RequiresUser(t *testing.T) {
	dbPath := testEnv(t)

	_, err := run(t, "stats", "--db", dbPath)
	assert.ErrorIs(t, err, vehicle.ErrNotAuthenticated)
}

func TestCLI_UserFromEnv(t *testing.T) {
	dbPath := testEnv(t)
	t.Setenv("VDASH_USER_ID", "bob")

	out, err := run(t, "stats", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Vehicle dashboard for bob")
	assert.Contains(t, out, "No odometer readings or fuel entries yet.")
}

func TestCLI_InvalidInput(t *testing.T) {
	dbPath := testEnv(t)
	base := []string{"--db", dbPath, "--user", "alice"}

	tests := []struct {
		name string
		args []string
		is   error
	}{
		{"ZeroQuantity", []string{"add-fuel", "--quantity", "0"}, vehicle.ErrInvalidQuantity},
		{"NegativeReading", []string{"add-reading", "--", "-5"}, vehicle.ErrInvalidReading},
		{"NotANumber", []string{"add-reading", "lots"}, nil},
		{"MissingQuantity", []string{"add-fuel"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Persistent flags go first so "--" can end flag parsing
			_, err := run(t, append(append([]string{}, base...), tt.args...)...)
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is), "error %v should wrap %v", err, tt.is)
			}
		})
	}
}

func TestCLI_List(t *testing.T) {
	dbPath := testEnv(t)
	base := []string{"--db", dbPath, "--user", "alice"}

	for _, v := range []string{"100", "200", "300"} {
		_, err := run(t, append([]string{"add-reading", v}, base...)...)
		require.NoError(t, err)
	}

	out, err := run(t, append([]string{"list", "--limit", "2"}, base...)...)
	require.NoError(t, err)

	assert.Contains(t, out, "Odometer readings:")
	assert.Contains(t, out, "300")
	assert.Contains(t, out, "... 1 more")
	assert.Contains(t, out, "Fuel entries:")
	assert.Contains(t, out, "none")
	assert.Less(t, strings.Index(out, "300"), strings.Index(out, "200"), "newest reading should come first")
}

func TestCLI_UploadMissingFile(t *testing.T) {
	dbPath := testEnv(t)
	_, err := run(t, "upload", filepath.Join(t.TempDir(), "missing.png"), "--db", dbPath, "--user", "alice")
	assert.Error(t, err)
}

func TestCLI_PublishRequiresBroker(t *testing.T) {
	dbPath := testEnv(t)
	_, err := run(t, "publish", "--db", dbPath, "--user", "alice")
	assert.ErrorContains(t, err, "VDASH_MQTT_BROKER")
}

func TestCLI_WatchPublishRequiresBroker(t *testing.T) {
	dbPath := testEnv(t)
	_, err := run(t, "watch", "--publish", "--db", dbPath, "--user", "alice")
	assert.ErrorContains(t, err, "VDASH_MQTT_BROKER")
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "vdash "), "got %q", out)
}

func TestCLI_DatabaseCreated(t *testing.T) {
	dbPath := testEnv(t)
	_, err := run(t, "stats", "--db", dbPath, "--user", "alice")
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err)
}
