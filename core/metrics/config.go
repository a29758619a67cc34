package metrics

import "github.com/kilianp07/moeopf/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort enables the /metrics endpoint when non-empty.
	PrometheusPort string `json:"prometheus_port"`
}
