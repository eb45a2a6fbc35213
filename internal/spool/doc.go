// Package spool implements the durable outbound publish queue (spec
// §4.B): two FIFO queues (QoS0 and QoS1+) ordered by monotonically
// increasing record id, a byte budget with QoS-aware eviction, and a
// pluggable Store for MEMORY or PERSISTENT (BadgerDB-backed) operation.
package spool
