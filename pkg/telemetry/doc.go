// Package telemetry provides structured logging, metrics, and tracing
// for shellforge. Logging is built on zerolog, metrics on Prometheus,
// and tracing on OpenTelemetry with stdout and OTLP exporters.
package telemetry
