package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/kilianp07/moeopf/core/evaluate"
	"github.com/kilianp07/moeopf/core/metrics"
	"github.com/kilianp07/moeopf/core/monitoring"
	"github.com/kilianp07/moeopf/core/params"
	"github.com/kilianp07/moeopf/core/powerflow"
	"github.com/kilianp07/moeopf/core/runlog"
	"github.com/kilianp07/moeopf/core/search"
	"github.com/kilianp07/moeopf/infra/mqtt"
	"github.com/kilianp07/moeopf/infra/storage"
)

// EnvPrefix marks environment overrides: K_SEARCH__SEED=7 sets search.seed.
const EnvPrefix = "K_"

type Config struct {
	Data       params.Paths      `json:"data"`
	Network    NetworkConfig     `json:"network"`
	Evaluation evaluate.Config   `json:"evaluation"`
	Search     search.Config     `json:"search"`
	Results    ResultsConfig     `json:"results"`
	RunLog     runlog.Config     `json:"runlog"`
	Metrics    metrics.Config    `json:"metrics"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Sentry     monitoring.Config `json:"sentry"`
	LogLevel   string            `json:"log_level"`
}

// NetworkConfig locates the network model and tunes its solver.
type NetworkConfig struct {
	Path   string            `json:"path"`
	Solver powerflow.Options `json:"solver"`
}

// ResultsConfig selects where and how the final Pareto set is written.
type ResultsConfig struct {
	Dir string `json:"dir"`
	// Formats lists the outputs to produce among "csv", "json" and "html".
	Formats []string `json:"formats"`
	// Upload copies the written files to an object store when enabled.
	Upload storage.Config `json:"upload"`
}

// SetDefaults applies sane defaults.
func (c *ResultsConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "results"
	}
	if c.Formats == nil {
		c.Formats = []string{"csv", "json", "html"}
	}
}

// Validate checks the output formats.
func (c ResultsConfig) Validate() error {
	for _, f := range c.Formats {
		switch f {
		case "csv", "json", "html":
		default:
			return fmt.Errorf("unknown results format %q", f)
		}
	}
	return c.Upload.Validate()
}

// Wants reports whether format f is selected.
func (c ResultsConfig) Wants(f string) bool {
	for _, v := range c.Formats {
		if v == f {
			return true
		}
	}
	return false
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	dir := filepath.Join("data", "ieee30")
	if c.Data.GeneratorLimits == "" {
		c.Data.GeneratorLimits = filepath.Join(dir, "generator_limits.csv")
	}
	if c.Data.Costs == "" {
		c.Data.Costs = filepath.Join(dir, "costs.csv")
	}
	if c.Data.Emissions == "" {
		c.Data.Emissions = filepath.Join(dir, "emissions.csv")
	}
	if c.Data.BusLimits == "" {
		c.Data.BusLimits = filepath.Join(dir, "bus_limits.csv")
	}
	if c.Network.Path == "" {
		c.Network.Path = filepath.Join(dir, "network.yaml")
	}
	c.Network.Solver.SetDefaults()
	c.Search.SetDefaults()
	c.Results.SetDefaults()
	c.RunLog.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"data", c.Data.Validate},
		{"evaluation", c.Evaluation.Validate},
		{"search", c.Search.Validate},
		{"results", c.Results.Validate},
		{"runlog", c.RunLog.Validate},
		{"mqtt", c.MQTT.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	if c.Sentry.TracesSampleRate < 0 || c.Sentry.TracesSampleRate > 1 {
		return fmt.Errorf("sentry.traces_sample_rate must lie in [0,1]")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Load reads the YAML or JSON file at path, applies K_ environment
// overrides, then defaults and validation. An empty path uses defaults and
// the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
