// Package metrics provides the observability hooks of sitedeploy.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics collection never requires nil checks:
//
//	d, err := dispatcher.New(dispatcher.Options{
//		IDs:      ids,
//		Launcher: l,
//		Recorder: metrics.NewPrometheusRecorder(reg), // nil means NoopRecorder
//	})
//
// PrometheusRecorder registers its collectors on the given registry and
// HTTPHandler exposes that registry on the admin listener.
package metrics
