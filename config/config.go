// Package config loads the daemon's bootstrap configuration: the
// EtherCAT interface, the message-bus URL, the cycle period, per-axis
// calibration, and soft limits. Flags (urfave/cli/v2) are the primary
// surface, each also readable from a SCARA_* environment variable through
// its cli EnvVars; viper layers an optional config file underneath. Viper
// itself binds no environment variables.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/thetooth/robot-ctrl/trajectory"
)

// AxisCalibration is the PDO-units-per-degree scaling for one drive.
type AxisCalibration struct {
	SlaveID       int     `mapstructure:"slaveID"`
	PositionRatio float64 `mapstructure:"positionRatio"`
	VelocityRatio float64 `mapstructure:"velocityRatio"`
	MinPosition   float64 `mapstructure:"minPosition"`
	MaxPosition   float64 `mapstructure:"maxPosition"`
	HomingOffset  float64 `mapstructure:"homingOffset"`
}

// Config is the fully resolved daemon configuration.
type Config struct {
	Interface   string `mapstructure:"interface"`
	NATSURL     string `mapstructure:"natsURL"`
	Simulated   bool   `mapstructure:"simulated"`
	CyclePeriodMicros int `mapstructure:"cyclePeriodMicros"`

	Axes [trajectory.Axes]AxisCalibration `mapstructure:"axes"`

	DefaultMaxVelocity     float64 `mapstructure:"defaultMaxVelocity"`
	DefaultMaxAcceleration float64 `mapstructure:"defaultMaxAcceleration"`
	DefaultMaxJerk         float64 `mapstructure:"defaultMaxJerk"`

	ThermalLimitCelsius float64 `mapstructure:"thermalLimitCelsius"`
}

// defaults mirrors the original source's hardcoded constants for the two
// revolute joints (J1 offset -235, J2 offset 145) generalized to all four
// axes, so a bare invocation without flags or env still bites.
func defaults() Config {
	return Config{
		Interface:         "eth0",
		NATSURL:           "nats://127.0.0.1:4222",
		Simulated:         true,
		CyclePeriodMicros: 1000,
		Axes: [trajectory.Axes]AxisCalibration{
			{SlaveID: 1, PositionRatio: 1000, VelocityRatio: 1000, MinPosition: -45, MaxPosition: 225, HomingOffset: -235},
			{SlaveID: 2, PositionRatio: 1000, VelocityRatio: 1000, MinPosition: -150, MaxPosition: 150, HomingOffset: 145},
			{SlaveID: 3, PositionRatio: 1000, VelocityRatio: 1000, MinPosition: -3600, MaxPosition: 3600, HomingOffset: 0},
			{SlaveID: 4, PositionRatio: 1000, VelocityRatio: 1000, MinPosition: -360, MaxPosition: 360, HomingOffset: 0},
		},
		DefaultMaxVelocity:     200,
		DefaultMaxAcceleration: 400,
		DefaultMaxJerk:         4000,
		ThermalLimitCelsius:    80,
	}
}

// Flags returns the urfave/cli flag set cmd/scara-ctrld registers; each
// flag's default is sourced from defaults() so --help shows the same
// values Load falls back to.
func Flags() []cli.Flag {
	d := defaults()
	return []cli.Flag{
		&cli.StringFlag{Name: "interface", Value: d.Interface, Usage: "EtherCAT network interface", EnvVars: []string{"SCARA_INTERFACE"}},
		&cli.StringFlag{Name: "nats-url", Value: d.NATSURL, Usage: "message bus URL", EnvVars: []string{"SCARA_NATS_URL"}},
		&cli.BoolFlag{Name: "simulated", Value: d.Simulated, Usage: "use the in-process simulated bus/drives instead of a real EtherCAT master", EnvVars: []string{"SCARA_SIMULATED"}},
		&cli.IntFlag{Name: "cycle-period-us", Value: d.CyclePeriodMicros, Usage: "control cycle period in microseconds", EnvVars: []string{"SCARA_CYCLE_PERIOD_US"}},
		&cli.StringFlag{Name: "config-file", Usage: "optional YAML/TOML/JSON config file layered under flags and env", EnvVars: []string{"SCARA_CONFIG_FILE"}},
	}
}

// Load resolves a Config from c's flags, layering in the config file
// named by --config-file if any, falling back to defaults()
// for everything left unset. Flags take precedence over the config
// file, which takes precedence over built-in defaults; env vars bound
// directly to cli.Flag (EnvVars above) are already folded into the flag
// value by the time Load runs.
func Load(c *cli.Context) (*Config, error) {
	v := viper.New()
	d := defaults()

	v.SetDefault("interface", d.Interface)
	v.SetDefault("natsURL", d.NATSURL)
	v.SetDefault("simulated", d.Simulated)
	v.SetDefault("cyclePeriodMicros", d.CyclePeriodMicros)
	v.SetDefault("axes", d.Axes)
	v.SetDefault("defaultMaxVelocity", d.DefaultMaxVelocity)
	v.SetDefault("defaultMaxAcceleration", d.DefaultMaxAcceleration)
	v.SetDefault("defaultMaxJerk", d.DefaultMaxJerk)
	v.SetDefault("thermalLimitCelsius", d.ThermalLimitCelsius)

	if path := c.String("config-file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "config: reading config file")
		}
	}

	if c.IsSet("interface") {
		v.Set("interface", c.String("interface"))
	}
	if c.IsSet("nats-url") {
		v.Set("natsURL", c.String("nats-url"))
	}
	if c.IsSet("simulated") {
		v.Set("simulated", c.Bool("simulated"))
	}
	if c.IsSet("cycle-period-us") {
		v.Set("cyclePeriodMicros", c.Int("cycle-period-us"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: decoding")
	}
	return &cfg, nil
}
