// Package metrics exposes engine measurements as Prometheus series.
//
// The sink satisfies the automation engine's MetricsSink interface and
// is scraped via the API server's /metrics endpoint. When metrics are
// unwanted (tests, embedded use) the engine falls back to its built-in
// no-op sink.
package metrics
