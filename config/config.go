// Package config loads the daemon's configuration file: the immutable
// set of environments, where to keep durable state, and the tuning
// knobs for rollout polling and health probing.
package config

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/caraveld/caravel"
)

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type AWS struct {
	Region string `yaml:"region"`
}

type Rollout struct {
	// How often to ask the fleet for refresh progress, and how long to
	// wait for a refresh before treating it as failed. Both bounds are
	// always finite.
	PollInterval Duration `yaml:"poll_interval"`
	Timeout      Duration `yaml:"timeout"`
}

type Probe struct {
	Attempts       int      `yaml:"attempts"`
	Interval       Duration `yaml:"interval"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

type Approval struct {
	// How long a deployment may sit in WaitingApproval before it is
	// failed rather than left suspended forever.
	Timeout Duration `yaml:"timeout"`
}

type Config struct {
	Listen       string                `yaml:"listen"`
	Database     string                `yaml:"database"`
	AWS          AWS                   `yaml:"aws"`
	Rollout      Rollout               `yaml:"rollout"`
	Probe        Probe                 `yaml:"probe"`
	Approval     Approval              `yaml:"approval"`
	Environments []caravel.Environment `yaml:"environments"`
}

// Defaults mirror the shell tooling this replaces: health checks every
// 10s with a 5s request timeout and a 300s ceiling, refresh progress
// polled every 30s.
func Default() Config {
	return Config{
		Listen:   ":3030",
		Database: "caravel.db",
		AWS:      AWS{Region: "us-east-1"},
		Rollout: Rollout{
			PollInterval: Duration(30 * time.Second),
			Timeout:      Duration(30 * time.Minute),
		},
		Probe: Probe{
			Attempts:       30,
			Interval:       Duration(10 * time.Second),
			RequestTimeout: Duration(5 * time.Second),
		},
		Approval: Approval{
			Timeout: Duration(time.Hour),
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config file")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Environments) == 0 {
		return errors.New("no environments configured")
	}
	seen := map[string]bool{}
	for _, env := range c.Environments {
		if env.Name == "" {
			return errors.New("environment with empty name")
		}
		if seen[env.Name] {
			return errors.Errorf("environment %q configured twice", env.Name)
		}
		seen[env.Name] = true
		if env.CheckURL == "" {
			return errors.Errorf("environment %q has no check_url", env.Name)
		}
		if env.Fleet == "" {
			return errors.Errorf("environment %q has no fleet", env.Name)
		}
	}
	if c.Probe.Attempts <= 0 {
		return errors.New("probe attempts must be positive")
	}
	if time.Duration(c.Rollout.Timeout) <= 0 {
		return errors.New("rollout timeout must be positive")
	}
	return nil
}

// Environment looks up a configured environment by name.
func (c Config) Environment(name string) (caravel.Environment, bool) {
	for _, env := range c.Environments {
		if env.Name == name {
			return env, true
		}
	}
	return caravel.Environment{}, false
}
