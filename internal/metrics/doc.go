// Package metrics provides observability hooks for the state store and runtime.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	store := pubsub.New(pubsub.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The Prometheus implementation registers its collectors on the registry it is
// given; HTTPHandler exposes that registry for scraping.
package metrics
