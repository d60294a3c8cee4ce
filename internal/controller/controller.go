package controller

import (
	"context"
	"sort"
	"time"

	"codeberg.org/mutker/amdfanctl/internal/curve"
	"codeberg.org/mutker/amdfanctl/internal/errors"
	"codeberg.org/mutker/amdfanctl/internal/hwmon"
	"codeberg.org/mutker/amdfanctl/internal/logger"
)

// Controller applies a fan curve to a fixed set of devices at a regular
// interval. The device set is snapshotted at construction; devices are
// visited in the same order on every tick.
type Controller struct {
	devices  []hwmon.Device
	curve    *curve.Curve
	interval time.Duration
	logger   logger.Logger
}

// Reading is one device's live state, exposed for presentation layers.
type Reading struct {
	Name        string
	Temperature float64
	FanSpeed    int
}

// New builds a controller over the given device snapshot. An empty
// snapshot is an error: there is no compatible hardware to control.
func New(devices map[string]hwmon.Device, fanCurve *curve.Curve, interval time.Duration, log logger.Logger) (*Controller, error) {
	errFactory := errors.New()

	if len(devices) == 0 {
		return nil, errFactory.New(ErrNoDevices)
	}
	if interval <= 0 {
		return nil, errFactory.New(ErrInvalidInterval)
	}

	// Map iteration order is not stable; fix the per-tick visit order once
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]hwmon.Device, 0, len(devices))
	for _, name := range names {
		ordered = append(ordered, devices[name])
	}

	return &Controller{
		devices:  ordered,
		curve:    fanCurve,
		interval: interval,
		logger:   log,
	}, nil
}

// Run ticks until the context is cancelled. Any device error aborts the
// run immediately: a write-permission failure on one device is treated
// as fatal for the whole process, not scoped to that device.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info().
		Int("devices", len(c.devices)).
		Dur("interval", c.interval).
		Msg("Starting fan control loop")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.tick(); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) tick() error {
	for _, device := range c.devices {
		temperature, err := device.Temperature()
		if err != nil {
			return err
		}

		speed := int(c.curve.Speed(temperature))
		if speed < 0 {
			speed = 0
		}

		c.logger.Debug().
			Str("card", device.Name()).
			Float64("temperature", temperature).
			Int("target_speed", speed).
			Int("fan_rpm", device.FanSpeed()).
			Msg("")

		if err := device.SetSpeed(speed); err != nil {
			return err
		}
	}

	return nil
}

// RestoreAuto hands fan control back to the firmware on every device.
// Failures are logged, not propagated; this runs during shutdown.
func (c *Controller) RestoreAuto() {
	for _, device := range c.devices {
		if err := device.SetAutoMode(true); err != nil {
			c.logger.Error().Str("card", device.Name()).Err(err).Msg("Failed to restore auto fan control")
		}
	}
}

// Readings fetches the live state of every device in the given set,
// ordered by name.
func Readings(devices map[string]hwmon.Device) []Reading {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)

	readings := make([]Reading, 0, len(devices))
	for _, name := range names {
		device := devices[name]
		temperature, err := device.Temperature()
		if err != nil {
			temperature = 0
		}
		readings = append(readings, Reading{
			Name:        name,
			Temperature: temperature,
			FanSpeed:    device.FanSpeed(),
		})
	}

	return readings
}
