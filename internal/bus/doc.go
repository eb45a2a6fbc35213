// Package bus implements the in-process local pub/sub surface (spec
// §4.G): publish/subscribe/unsubscribe with the same receive-mode
// semantics as the cloud coalescer, dispatched through an ordered
// per-topic executor so deliveries for one topic are strictly ordered
// while different topics proceed in parallel.
package bus
