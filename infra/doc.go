// Package infra holds the adapters behind the core interfaces: zerolog
// logging, the Prometheus and InfluxDB sinks, the MQTT progress publisher
// and Sentry error reporting.
package infra
