package connect

import (
	"time"

	"chatlink/config"
	"chatlink/sockjs"
)

type Options struct {
	URL               string
	Transports        []string
	ReconnectDelay    time.Duration // zero disables reconnection
	HeartbeatIncoming time.Duration
	HeartbeatOutgoing time.Duration
	OpenTimeout       time.Duration
	Host              string
	ConnectHeaders    map[string]string
	OnConnect         func()
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		URL:               config.DefaultConnectUrl,
		Transports:        append([]string(nil), sockjs.DefaultTransports...),
		ReconnectDelay:    5000 * time.Millisecond,
		HeartbeatIncoming: 4000 * time.Millisecond,
		HeartbeatOutgoing: 4000 * time.Millisecond,
		OpenTimeout:       5000 * time.Millisecond,
		ConnectHeaders:    make(map[string]string),
	}
}

func WithURL(url string) Option {
	return func(o *Options) { o.URL = url }
}

func WithTransports(transports ...string) Option {
	return func(o *Options) { o.Transports = transports }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(o *Options) { o.ReconnectDelay = d }
}

func WithHeartbeat(incoming, outgoing time.Duration) Option {
	return func(o *Options) {
		o.HeartbeatIncoming = incoming
		o.HeartbeatOutgoing = outgoing
	}
}

func WithOpenTimeout(d time.Duration) Option {
	return func(o *Options) { o.OpenTimeout = d }
}

// WithHost sets the STOMP host header. Defaults to the endpoint host name.
func WithHost(host string) Option {
	return func(o *Options) { o.Host = host }
}

func WithConnectHeader(key, value string) Option {
	return func(o *Options) { o.ConnectHeaders[key] = value }
}

// WithOnConnect registers fn to run after every successful (re)connect.
func WithOnConnect(fn func()) Option {
	return func(o *Options) { o.OnConnect = fn }
}

// FromConfig applies the [connect-base] section. Zero values keep the defaults,
// except reconnectDelayMs which is honored as set.
func FromConfig(base config.ConnectBase) Option {
	return func(o *Options) {
		if base.Url != "" {
			o.URL = base.Url
		}
		if len(base.Transports) > 0 {
			o.Transports = base.Transports
		}
		o.ReconnectDelay = base.ReconnectDelay()
		if base.HeartbeatIncomingMs > 0 || base.HeartbeatOutgoingMs > 0 {
			o.HeartbeatIncoming = base.HeartbeatIncoming()
			o.HeartbeatOutgoing = base.HeartbeatOutgoing()
		}
		if base.OpenTimeoutMs > 0 {
			o.OpenTimeout = base.OpenTimeout()
		}
	}
}
