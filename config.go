package livetiming

import (
	"io"
	"os"
	"time"

	"github.com/dimchansky/utfbom"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"justapengu.in/livetiming/internal/telemetry"
)

type Config struct {
	Telemetry  telemetry.ReceiverConfig `json:"telemetry" yaml:"telemetry"`
	HTTP       HTTPConfig               `json:"http" yaml:"http"`
	LiveTiming LiveTimingConfig         `json:"live_timing" yaml:"live_timing"`
	LogLevel   string                   `json:"log_level" yaml:"log_level"`
}

const (
	defaultHTTPPort      = 5000
	defaultStatsInterval = time.Minute
)

func DefaultConfig() *Config {
	return &Config{
		Telemetry: telemetry.ReceiverConfig{
			Port:          telemetry.DefaultPort,
			StatsInterval: defaultStatsInterval,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		LiveTiming: LiveTimingConfig{
			BroadcastStandings: true,
			RaceEngineer:       DefaultRaceEngineerConfig(),
		},
		LogLevel: logrus.InfoLevel.String(),
	}
}

// ReadConfig reads a YAML config file over the defaults. Keys missing from the file keep their default.
func ReadConfig(filename string) (*Config, error) {
	conf := DefaultConfig()

	f, err := os.Open(filename)

	if err != nil {
		return conf, errors.Wrapf(err, "could not open config file %s", filename)
	}

	defer f.Close()

	if err := yaml.NewDecoder(utfbom.SkipOnly(f)).Decode(conf); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "could not decode config file %s", filename)
	}

	conf.applyDefaults()

	return conf, nil
}

func (c *Config) applyDefaults() {
	if c.Telemetry.Port == 0 {
		c.Telemetry.Port = telemetry.DefaultPort
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = defaultHTTPPort
	}

	if c.LogLevel == "" {
		c.LogLevel = logrus.InfoLevel.String()
	}
}

func (c *Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)

	if err != nil {
		return logrus.InfoLevel, errors.Wrapf(err, "invalid log_level %q", c.LogLevel)
	}

	return level, nil
}
