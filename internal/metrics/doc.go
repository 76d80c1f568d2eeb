// Package metrics provides build and watch-loop metrics for sitebuilder.
//
// Components depend on the Recorder interface and default to NoopRecorder, so
// no nil checks are needed anywhere in the pipeline:
//
//	b := build.NewBuilder(cfg, nil)                     // NoopRecorder
//	b.WithRecorder(metrics.NewPrometheusRecorder(reg))  // Prometheus
//
// When metrics are enabled the preview server exposes the registry through
// PrometheusRecorder.Handler at the configured path (default /metrics).
package metrics
