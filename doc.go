// Package mqttclient wires together the edge-to-cloud MQTT bridge
// session: a connection-managed pool of cloud links, a durable
// outbound spooler, a subscription coalescer, a publish pipeline, and
// an in-process local pub/sub bus.
//
// Session is the single entry point: construct it with New,
// call Start, and use Publish/Subscribe/BusPublish/BusSubscribe until
// Close.
package mqttclient
