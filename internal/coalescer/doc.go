// Package coalescer maintains the set of distinct cloud subscriptions
// keyed by topic filter (spec §4.E): superset deduplication so a filter
// equal to or covered by an existing one never becomes a second live
// cloud subscription,
// subset reparenting when a broader filter arrives later, refcounted
// cloud unsubscribe, and receive-mode-filtered local fan-out.
package coalescer
