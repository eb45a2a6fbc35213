// Package link implements one logical MQTT session to the cloud broker
// (spec §4.C): connect/close lifecycle, rate-limited publish and
// (un)subscribe, resubscription on session resumption with per-filter
// backoff, and in-flight/closability accounting.
//
// The wire transport is abstracted behind the transport interface so
// this package's state machine is unit-testable without a live broker;
// ClientTransport is the concrete adapter over
// github.com/eclipse/paho.golang, grounded on the teacher framework's
// own use of that client in framework/event/mqtt.go.
package link
