package hwmon

// Device represents one GPU's cooling subsystem as exposed through the
// kernel hwmon file interface. Readings are fetched live on every call,
// never cached.
type Device interface {
	// Name returns the stable device node name, e.g. "card0"
	Name() string

	// Temperature returns the current GPU temperature in degrees Celsius
	Temperature() (float64, error)

	// FanSpeed returns the current fan speed in RPM, or 0 when the
	// device exposes no tachometer or the reading fails
	FanSpeed() int

	// DutyMin returns the hardware floor duty value
	DutyMin() (int, error)

	// DutyMax returns the hardware ceiling duty value
	DutyMax() (int, error)

	// SetAutoMode hands fan control to the firmware when enabled, or
	// switches to manual duty writes when disabled
	SetAutoMode(enabled bool) error

	// SetSpeed commands a fan speed as a percentage of the duty range.
	// Manual mode is forced before the duty write.
	SetSpeed(percent int) error
}
