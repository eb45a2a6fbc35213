// Package pipeline implements the publish pipeline (spec §4.F):
// validate, admit to the spool, and drain via a single pump goroutine
// that selects a link through the connection manager and awaits its
// ack, retrying retryable failures up to a configured cap and dropping
// QoS0 work on disconnect per policy.
package pipeline
