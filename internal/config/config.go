package config

import (
	"os"
	"path/filepath"

	"codeberg.org/mutker/amdfanctl/internal/errors"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultPath is the well-known location of the configuration
	// document. A default template is written here when no document
	// exists at startup.
	DefaultPath = "/etc/amdfanctl.yml"

	// EnvConfig overrides the configuration document location.
	EnvConfig = "AMDFANCTL_CONFIG"

	DefaultInterval = 1

	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// defaultTemplate is the configuration written on first run.
const defaultTemplate = `# Fan control matrix. [<temp in °C>, <fan speed in %>]
# The minimum supported speed value is 4 due to a driver bug.
speed_matrix:
- [4, 4]
- [30, 33]
- [45, 50]
- [60, 66]
- [65, 69]
- [70, 75]
- [75, 89]
- [80, 100]

# Optional: seconds between control loop ticks.
# interval: 1

# Optional: restrict control to specific cards.
# Can be any card returned by ` + "`ls /sys/class/drm | grep \"^card[0-9]$\"`" + `
# cards:
# - card0
`

type Config struct {
	// Interval is the control loop tick interval in seconds
	Interval int `mapstructure:"interval"`

	// SpeedMatrix is the ordered list of [temperature, speed] control points
	SpeedMatrix [][]float64 `mapstructure:"speed_matrix"`

	// Cards optionally restricts which device nodes are scanned
	Cards []string `mapstructure:"cards"`

	// Flag-only settings
	Daemon  bool `mapstructure:"-"`
	Debug   bool `mapstructure:"-"`
	Verbose bool `mapstructure:"-"`
}

// Load parses command line flags and the YAML configuration document.
// The document location is resolved from the --config flag, then the
// AMDFANCTL_CONFIG environment variable, then DefaultPath. A missing
// document at DefaultPath is created from the default template; a
// missing document at an explicit location is an error.
func Load(fsys afero.Fs, args []string) (*Config, error) {
	errFactory := errors.New()
	config := &Config{}

	flags := pflag.NewFlagSet("amdfanctl", pflag.ContinueOnError)
	configFlag := flags.String("config", "", "Path to the configuration file")
	flags.BoolVar(&config.Daemon, "daemon", false, "Run as a daemon applying the fan curve")
	flags.BoolVar(&config.Debug, "debug", false, "Enable debugging mode")
	flags.BoolVar(&config.Verbose, "verbose", false, "Enable verbose logging")
	intervalFlag := flags.Int("interval", DefaultInterval, "Seconds between control loop ticks")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	path := *configFlag
	explicit := path != ""
	if !explicit {
		if envPath := os.Getenv(EnvConfig); envPath != "" {
			path = envPath
			explicit = true
		} else {
			path = DefaultPath
		}
	}

	if _, err := fsys.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, errFactory.WithData(errors.ErrMissingConfig, path)
		}
		if err := WriteDefault(fsys, path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("interval", DefaultInterval)

	if err := v.ReadInConfig(); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if flags.Changed("interval") {
		v.Set("interval", *intervalFlag)
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// WriteDefault writes the default configuration template to the given
// path, creating parent directories as needed.
func WriteDefault(fsys afero.Fs, path string) error {
	errFactory := errors.New()

	if err := fsys.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return errFactory.Wrap(errors.ErrWriteConfig, err)
	}

	if err := afero.WriteFile(fsys, path, []byte(defaultTemplate), defaultFilePerm); err != nil {
		return errFactory.Wrap(errors.ErrWriteConfig, err)
	}

	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if len(c.SpeedMatrix) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "speed_matrix is required")
	}
	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	return nil
}
