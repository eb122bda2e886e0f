// Package events carries run lifecycle notifications from the orchestrator to
// pluggable sinks. The Hub buffers events on a background goroutine, batches
// them and fans each batch out to every sink; emitters never block.
package events
