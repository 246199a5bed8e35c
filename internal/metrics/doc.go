// Package metrics provides observability hooks for watch sessions.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics stay optional:
//
//	opts := watcher.Options{Recorder: metrics.NoopRecorder{}}
//
// When the CLI is started with a metrics address, a PrometheusRecorder backed by
// a private registry is injected instead and served through HTTPHandler.
package metrics
