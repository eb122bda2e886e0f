// Package sinks implements event consumers: structured logs, Prometheus
// collectors, run-done notifications and a websocket live stream. Each
// satisfies events.Sink.
package sinks
