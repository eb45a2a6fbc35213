package mqttclient

import (
	"log/slog"
	"time"

	"github.com/aws-greengrass/mqttclient/internal/link"
	"github.com/aws-greengrass/mqttclient/internal/manager"
	"github.com/aws-greengrass/mqttclient/internal/pipeline"
	"github.com/aws-greengrass/mqttclient/internal/spool"
)

// Options configures a Session. A zero Options is not usable as-is;
// ServerURLs and ClientIDPrefix must be set. KeepAlive, AuthGuard,
// Logger and ShutdownTimeout fall back to DefaultOptions' value when
// left zero. The nested config structs fall back as a whole:
// SpoolConfig when its MaxBytes is zero, LinkOptions when its
// OperationTimeout is zero, ManagerOptions when its
// MaxSubscriptionsPerLink is zero, and PipelineConfig when its
// MaxPayloadBytes is zero; the other fields of a struct whose key
// field is set keep their values, zero or not.
type Options struct {
	// ServerURLs lists the broker endpoints autopaho will dial,
	// e.g. "tls://xxxx.iot.us-east-1.amazonaws.com:8883".
	ServerURLs []string

	// ClientIDPrefix is combined with a link's numeric id to form that
	// link's MQTT client id.
	ClientIDPrefix string

	Username   string
	Password   string
	KeepAlive  uint16
	CleanStart bool

	SpoolConfig    spool.Config
	LinkOptions    link.Options
	ManagerOptions manager.Options
	PipelineConfig pipeline.Config

	// AuthGuard backs Session.Authorize. Defaults to a guard that
	// permits everything.
	AuthGuard AuthGuard

	Logger *slog.Logger

	// Observer, if it implements any of BeforeStart/AfterStart/
	// BeforeShutdown/AfterShutdown, is called at the matching point in
	// the Session lifecycle.
	Observer any

	// ShutdownTimeout bounds how long Close waits for in-flight link
	// teardown before giving up.
	ShutdownTimeout time.Duration
}

// DefaultOptions holds the values a Session falls back to for any
// zero-valued field of Options.
var DefaultOptions = Options{
	KeepAlive: 30,
	SpoolConfig: spool.Config{
		MaxBytes:   16 << 20,
		MaxRetries: 5,
		Storage:    spool.StorageMemory,
	},
	LinkOptions:    link.DefaultOptions(),
	ManagerOptions: manager.DefaultOptions(),
	PipelineConfig: pipeline.Config{
		MaxRetries:      5,
		MaxPayloadBytes: pipeline.DefaultMaxPayloadBytes,
	},
	AuthGuard:       allowAllGuard{},
	Logger:          slog.Default(),
	ShutdownTimeout: 10 * time.Second,
}

func (o Options) withDefaults() Options {
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultOptions.KeepAlive
	}
	if o.SpoolConfig.MaxBytes == 0 {
		o.SpoolConfig = DefaultOptions.SpoolConfig
	}
	if o.LinkOptions.OperationTimeout == 0 {
		o.LinkOptions = DefaultOptions.LinkOptions
	}
	if o.ManagerOptions.MaxSubscriptionsPerLink == 0 {
		o.ManagerOptions = DefaultOptions.ManagerOptions
	}
	if o.PipelineConfig.MaxPayloadBytes == 0 {
		o.PipelineConfig = DefaultOptions.PipelineConfig
	}
	if o.AuthGuard == nil {
		o.AuthGuard = DefaultOptions.AuthGuard
	}
	if o.Logger == nil {
		o.Logger = DefaultOptions.Logger
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = DefaultOptions.ShutdownTimeout
	}
	return o
}
