package hwmon

import (
	"path/filepath"
	"regexp"
	"strings"

	"codeberg.org/mutker/amdfanctl/internal/errors"
	"codeberg.org/mutker/amdfanctl/internal/logger"
	"github.com/spf13/afero"
)

// RootDir is the sysfs hierarchy holding the DRM device nodes.
const RootDir = "/sys/class/drm"

const hwmonSubdir = "device/hwmon"

var (
	cardPattern    = regexp.MustCompile(`^card\d+$`)
	monitorPattern = regexp.MustCompile(`^hwmon\d+$`)
)

// Endpoint file names under a card's hwmon subnode.
const (
	endpointTemperature = "temp1_input"
	endpointTachometer  = "fan1_input"
	endpointDuty        = "pwm1"
	endpointDutyMin     = "pwm1_min"
	endpointDutyMax     = "pwm1_max"
	endpointControlMode = "pwm1_enable"
)

// requiredEndpoints must all be present for a card to be usable.
// The tachometer is informational and deliberately not part of this set.
var requiredEndpoints = []string{
	endpointTemperature,
	endpointDuty,
	endpointDutyMin,
	endpointDutyMax,
	endpointControlMode,
}

// bookkeepingEntries are non-control entries every hwmon directory carries.
var bookkeepingEntries = map[string]bool{
	"device":    true,
	"power":     true,
	"subsystem": true,
	"uevent":    true,
}

// Scan enumerates the DRM device nodes under root, validates each
// candidate's hwmon endpoints, and returns the usable cards keyed by
// node name. Candidates lacking a required endpoint are excluded, not
// errors. A non-empty allowList restricts scanning to the named cards
// (case-insensitive). An empty result is left to the caller to judge.
func Scan(fsys afero.Fs, allowList []string, log logger.Logger) (map[string]*Card, error) {
	errFactory := errors.New()

	entries, err := afero.ReadDir(fsys, RootDir)
	if err != nil {
		return nil, errFactory.Wrap(ErrScanFailed, err)
	}

	allowed := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		allowed[strings.ToLower(name)] = true
	}

	cards := make(map[string]*Card)
	for _, entry := range entries {
		name := entry.Name()
		if !cardPattern.MatchString(name) {
			continue
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(name)] {
			log.Debug().Str("card", name).Msg("Skipping card absent from allow list")
			continue
		}

		card, err := probeCard(fsys, name, log)
		if err != nil {
			// Cards lacking hwmon or the required endpoints are not
			// driven by amdgpu and simply not ours to control.
			log.Debug().Str("card", name).Err(err).Msg("Skipping incompatible card")
			continue
		}

		log.Info().Str("card", name).Msg("Detected compatible card")
		cards[name] = card
	}

	return cards, nil
}

// probeCard validates a single candidate node and materializes a Card,
// or reports the reason the candidate is unusable.
func probeCard(fsys afero.Fs, name string, log logger.Logger) (*Card, error) {
	errFactory := errors.New()

	monitorRoot := filepath.Join(RootDir, name, hwmonSubdir)
	entries, err := afero.ReadDir(fsys, monitorRoot)
	if err != nil {
		return nil, errFactory.Wrap(ErrDeviceIncompatible, err)
	}

	monitor := ""
	for _, entry := range entries {
		if monitorPattern.MatchString(entry.Name()) {
			monitor = entry.Name()
			break
		}
	}
	if monitor == "" {
		return nil, errFactory.WithMessage(ErrDeviceIncompatible, "no hwmon subnode")
	}

	monitorDir := filepath.Join(monitorRoot, monitor)
	entries, err = afero.ReadDir(fsys, monitorDir)
	if err != nil {
		return nil, errFactory.Wrap(ErrDeviceIncompatible, err)
	}

	available := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !bookkeepingEntries[entry.Name()] {
			available[entry.Name()] = true
		}
	}

	for _, endpoint := range requiredEndpoints {
		if !available[endpoint] {
			return nil, errFactory.WithData(ErrDeviceIncompatible, "missing endpoint "+endpoint)
		}
	}

	eps := endpoints{
		temperature: filepath.Join(monitorDir, endpointTemperature),
		duty:        filepath.Join(monitorDir, endpointDuty),
		dutyMin:     filepath.Join(monitorDir, endpointDutyMin),
		dutyMax:     filepath.Join(monitorDir, endpointDutyMax),
		controlMode: filepath.Join(monitorDir, endpointControlMode),
	}
	if available[endpointTachometer] {
		eps.tachometer = filepath.Join(monitorDir, endpointTachometer)
	}

	return &Card{
		name:      name,
		fs:        fsys,
		endpoints: eps,
		logger:    log,
	}, nil
}
