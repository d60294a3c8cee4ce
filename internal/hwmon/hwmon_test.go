package hwmon_test

import (
	"path/filepath"
	"testing"

	"codeberg.org/mutker/amdfanctl/internal/errors"
	"codeberg.org/mutker/amdfanctl/internal/hwmon"
	"codeberg.org/mutker/amdfanctl/internal/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEndpoints = map[string]string{
	"temp1_input": "45000\n",
	"fan1_input":  "1500\n",
	"pwm1":        "128\n",
	"pwm1_min":    "0\n",
	"pwm1_max":    "255\n",
	"pwm1_enable": "2\n",
}

func testLogger() logger.Logger {
	logger.Init(false, false, true)
	return logger.Default()
}

// writeCard lays out a sysfs-like card tree on the given filesystem,
// with the named endpoint omitted (empty string omits nothing).
func writeCard(t *testing.T, fsys afero.Fs, card string, omit string) {
	t.Helper()

	monitorDir := filepath.Join(hwmon.RootDir, card, "device", "hwmon", "hwmon3")
	require.NoError(t, fsys.MkdirAll(monitorDir, 0o755))

	// Bookkeeping entries every hwmon directory carries
	for _, entry := range []string{"device", "power", "subsystem"} {
		require.NoError(t, fsys.MkdirAll(filepath.Join(monitorDir, entry), 0o755))
	}
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(monitorDir, "uevent"), []byte{}, 0o644))

	for endpoint, value := range allEndpoints {
		if endpoint == omit {
			continue
		}
		require.NoError(t, afero.WriteFile(fsys, filepath.Join(monitorDir, endpoint), []byte(value), 0o644))
	}
}

func scanOne(t *testing.T, fsys afero.Fs, card string) *hwmon.Card {
	t.Helper()

	cards, err := hwmon.Scan(fsys, nil, testLogger())
	require.NoError(t, err)
	require.Contains(t, cards, card)

	return cards[card]
}

func TestScanDiscoversValidCards(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")
	writeCard(t, fsys, "card1", "")
	// Non-card nodes under the root must be ignored
	require.NoError(t, fsys.MkdirAll(filepath.Join(hwmon.RootDir, "renderD128"), 0o755))
	require.NoError(t, fsys.MkdirAll(filepath.Join(hwmon.RootDir, "card0-DP-1"), 0o755))

	cards, err := hwmon.Scan(fsys, nil, testLogger())
	require.NoError(t, err)

	assert.Len(t, cards, 2)
	assert.Contains(t, cards, "card0")
	assert.Contains(t, cards, "card1")
}

func TestScanExcludesIncompatibleCards(t *testing.T) {
	for _, missing := range []string{"temp1_input", "pwm1", "pwm1_min", "pwm1_max", "pwm1_enable"} {
		t.Run("missing "+missing, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeCard(t, fsys, "card0", missing)
			writeCard(t, fsys, "card1", "")

			cards, err := hwmon.Scan(fsys, nil, testLogger())
			require.NoError(t, err)

			assert.NotContains(t, cards, "card0", "Card missing %s must be excluded", missing)
			assert.Contains(t, cards, "card1", "Valid card must still be returned")
		})
	}
}

func TestScanTachometerIsOptional(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "fan1_input")

	card := scanOne(t, fsys, "card0")
	assert.Equal(t, 0, card.FanSpeed(), "Missing tachometer reads as 0")
}

func TestScanSkipsCardWithoutHwmonSubnode(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")
	require.NoError(t, fsys.MkdirAll(filepath.Join(hwmon.RootDir, "card1", "device", "hwmon"), 0o755))

	cards, err := hwmon.Scan(fsys, nil, testLogger())
	require.NoError(t, err)

	assert.Contains(t, cards, "card0")
	assert.NotContains(t, cards, "card1")
}

func TestScanAllowList(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")
	writeCard(t, fsys, "card1", "")

	cards, err := hwmon.Scan(fsys, []string{"CARD1"}, testLogger())
	require.NoError(t, err)

	assert.Len(t, cards, 1)
	assert.Contains(t, cards, "card1", "Allow list match is case-insensitive")
}

func TestScanFailsWithoutRoot(t *testing.T) {
	_, err := hwmon.Scan(afero.NewMemMapFs(), nil, testLogger())
	assert.Error(t, err)
}

func TestTemperatureScalesMillidegrees(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")

	card := scanOne(t, fsys, "card0")
	temp, err := card.Temperature()
	require.NoError(t, err)
	assert.InDelta(t, 45.0, temp, 1e-9)
}

func TestFanSpeed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")

	card := scanOne(t, fsys, "card0")
	assert.Equal(t, 1500, card.FanSpeed())
}

func TestDutyBounds(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")

	card := scanOne(t, fsys, "card0")

	dutyMin, err := card.DutyMin()
	require.NoError(t, err)
	assert.Equal(t, 0, dutyMin)

	dutyMax, err := card.DutyMax()
	require.NoError(t, err)
	assert.Equal(t, 255, dutyMax)
}

func readEndpoint(t *testing.T, fsys afero.Fs, card, endpoint string) string {
	t.Helper()

	path := filepath.Join(hwmon.RootDir, card, "device", "hwmon", "hwmon3", endpoint)
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)

	return string(data)
}

func TestSetSpeed(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		duty    string
	}{
		{name: "zero percent commands minimum duty", percent: 0, duty: "0"},
		{name: "negative percent commands minimum duty", percent: -10, duty: "0"},
		{name: "full percent commands maximum duty", percent: 100, duty: "255"},
		{name: "above full commands maximum duty", percent: 120, duty: "255"},
		{name: "half percent truncates", percent: 50, duty: "127"},
		{name: "one percent", percent: 1, duty: "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			writeCard(t, fsys, "card0", "")

			card := scanOne(t, fsys, "card0")
			require.NoError(t, card.SetSpeed(tt.percent))

			assert.Equal(t, tt.duty, readEndpoint(t, fsys, "card0", "pwm1"))
			assert.Equal(t, "1", readEndpoint(t, fsys, "card0", "pwm1_enable"),
				"Manual mode must be forced before the duty write")
		})
	}
}

func TestSetAutoMode(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")

	card := scanOne(t, fsys, "card0")

	require.NoError(t, card.SetAutoMode(true))
	assert.Equal(t, "2", readEndpoint(t, fsys, "card0", "pwm1_enable"))

	require.NoError(t, card.SetAutoMode(false))
	assert.Equal(t, "1", readEndpoint(t, fsys, "card0", "pwm1_enable"))
}

func TestSetSpeedPermissionDenied(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeCard(t, fsys, "card0", "")

	cards, err := hwmon.Scan(afero.NewReadOnlyFs(fsys), nil, testLogger())
	require.NoError(t, err)
	require.Contains(t, cards, "card0")

	err = cards["card0"].SetSpeed(50)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, hwmon.ErrPermissionDenied),
		"Expected permission error code, got %v", err)
}
