// Package metrics owns the Prometheus registry for hlscache and the
// collectors the request path, eviction and maintenance update.
//
// All recording methods accept a nil *Metrics so components can run without
// instrumentation in tests and one-shot CLI commands.
package metrics
