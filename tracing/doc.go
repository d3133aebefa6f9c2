// Package tracing wraps OpenTelemetry so that the navigator can open a span
// per executed token step. Spans are no-ops until Init or InitWithExporter
// installs a provider.
package tracing
