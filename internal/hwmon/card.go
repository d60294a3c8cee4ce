package hwmon

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/amdfanctl/internal/errors"
	"codeberg.org/mutker/amdfanctl/internal/logger"
	"github.com/spf13/afero"
)

// pwm1_enable values understood by the amdgpu driver.
const (
	controlModeManual = 1
	controlModeAuto   = 2
)

const milliDegreesPerDegree = 1000

// endpoints is the capability-checked set of control files for one card.
// All fields except the tachometer are mandatory; an empty tachometer
// path means the card exposes none.
type endpoints struct {
	temperature string
	duty        string
	dutyMin     string
	dutyMax     string
	controlMode string
	tachometer  string
}

// Card is one validated GPU cooling subsystem. Instances are only
// materialized by Scan, which guarantees the required endpoints exist.
type Card struct {
	name      string
	fs        afero.Fs
	endpoints endpoints
	logger    logger.Logger
}

func (c *Card) Name() string {
	return c.name
}

func (c *Card) Temperature() (float64, error) {
	raw, err := c.readInt(c.endpoints.temperature)
	if err != nil {
		return 0, err
	}

	return float64(raw) / milliDegreesPerDegree, nil
}

// FanSpeed returns the tachometer reading in RPM. The tachometer is
// informational only; a missing endpoint or failed read yields 0
// rather than an error.
func (c *Card) FanSpeed() int {
	if c.endpoints.tachometer == "" {
		return 0
	}

	speed, err := c.readInt(c.endpoints.tachometer)
	if err != nil {
		c.logger.Debug().Str("card", c.name).Err(err).Msg("Failed to read tachometer")
		return 0
	}

	return speed
}

func (c *Card) DutyMin() (int, error) {
	return c.readInt(c.endpoints.dutyMin)
}

func (c *Card) DutyMax() (int, error) {
	return c.readInt(c.endpoints.dutyMax)
}

// SetAutoMode switches fan control ownership between the firmware and
// manual duty writes. Manual mode must be active for a duty write to
// have any effect.
func (c *Card) SetAutoMode(enabled bool) error {
	mode := controlModeManual
	if enabled {
		mode = controlModeAuto
	}

	return c.writeEndpoint(c.endpoints.controlMode, strconv.Itoa(mode))
}

// SetSpeed commands a duty cycle scaled from the given percentage
// against the card's duty bounds. Percentages at or beyond the range
// ends map to the exact hardware bounds.
func (c *Card) SetSpeed(percent int) error {
	dutyMax, err := c.DutyMax()
	if err != nil {
		return err
	}

	var duty int
	switch {
	case percent >= 100:
		duty = dutyMax
	case percent <= 0:
		duty, err = c.DutyMin()
		if err != nil {
			return err
		}
	default:
		duty = int(float64(dutyMax) * float64(percent) / 100)
	}

	if err := c.SetAutoMode(false); err != nil {
		return err
	}

	c.logger.Debug().
		Str("card", c.name).
		Int("percent", percent).
		Int("duty", duty).
		Msg("Setting fan duty")

	return c.writeEndpoint(c.endpoints.duty, strconv.Itoa(duty))
}

func (c *Card) readEndpoint(path string) (string, error) {
	errFactory := errors.New()

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", errFactory.Wrap(ErrEndpointRead, err)
	}

	return string(data), nil
}

func (c *Card) readInt(path string) (int, error) {
	errFactory := errors.New()

	raw, err := c.readEndpoint(path)
	if err != nil {
		return 0, err
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errFactory.Wrap(ErrParseValue, err)
	}

	return value, nil
}

func (c *Card) writeEndpoint(path, value string) error {
	errFactory := errors.New()

	file, err := c.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		if os.IsPermission(err) {
			return errFactory.Wrap(ErrPermissionDenied, err)
		}
		return errFactory.Wrap(ErrEndpointWrite, err)
	}
	defer file.Close()

	if _, err := file.WriteString(value); err != nil {
		if os.IsPermission(err) {
			return errFactory.Wrap(ErrPermissionDenied, err)
		}
		return errFactory.Wrap(ErrEndpointWrite, err)
	}

	return nil
}
