// Package topic implements MQTT topic-filter matching and the
// topic-superset relation used to deduplicate cloud subscriptions, plus
// the publish/subscribe validation rules for unreserved and reserved
// topic prefixes.
package topic
