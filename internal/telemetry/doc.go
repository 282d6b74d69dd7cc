// Package telemetry exports quotecheck traces and metrics over OTLP.
//
// Telemetry is off by default. When enabled, New installs global tracer and meter
// providers so the otel.Tracer and otel.Meter calls made by the verification,
// embedding, indexer and http packages are exported. Exporter failures degrade
// telemetry to no-op providers instead of failing startup.
//
//	telemetry:
//	  enabled: true
//	  endpoint: localhost:4317
//	  protocol: grpc          # or http/protobuf
//	  sample_rate: 0.25
//	  metrics_interval: 15s
//
// Prometheus scraping of /metrics is independent of this package.
package telemetry
