package server

import (
	"net/http"
	"net/url"
	"time"
)

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message from the client.
	// Heartbeats keep an idle but healthy connection under it.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between heartbeat pings.
	// Default: 25 seconds.
	HeartbeatInterval time.Duration

	// AttachTimeout is how long a rendered page may take to open its
	// WebSocket before its session is discarded.
	// Default: 30 seconds.
	AttachTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 64KB.
	MaxMessageSize int64

	// MaxEventQueue is the size of the event channel buffer.
	// Default: 256.
	MaxEventQueue int

	// EventRate and EventBurst bound client events per second. Events over
	// budget are dropped.
	// Default: 50 per second, bursts of 100.
	EventRate  float64
	EventBurst int
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		AttachTimeout:     30 * time.Second,
		MaxMessageSize:    64 * 1024,
		MaxEventQueue:     256,
		EventRate:         50,
		EventBurst:        100,
	}
}

// Config holds configuration for the HTTP/WebSocket server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	// Default: ":8080".
	Address string

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 15 seconds.
	ShutdownTimeout time.Duration

	// CleanupInterval is the interval of the session cleanup loop.
	// Default: 15 seconds.
	CleanupInterval time.Duration

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// StyleSheets and Scripts are linked from every page, e.g. the
	// Tailwind build.
	StyleSheets []string
	Scripts     []string

	// CheckOrigin validates the WebSocket request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Session is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	Session *SessionConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadHeaderTimeout: 10 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		CleanupInterval:   15 * time.Second,
		CheckOrigin:       SameOriginCheck,
		Session:           DefaultSessionConfig(),
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadHeaderTimeout <= 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.CleanupInterval <= 0 {
		out.CleanupInterval = d.CleanupInterval
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.Session == nil {
		out.Session = d.Session
	} else {
		s := *out.Session
		ds := d.Session
		if s.ReadTimeout <= 0 {
			s.ReadTimeout = ds.ReadTimeout
		}
		if s.WriteTimeout <= 0 {
			s.WriteTimeout = ds.WriteTimeout
		}
		if s.HeartbeatInterval <= 0 {
			s.HeartbeatInterval = ds.HeartbeatInterval
		}
		if s.AttachTimeout <= 0 {
			s.AttachTimeout = ds.AttachTimeout
		}
		if s.MaxMessageSize <= 0 {
			s.MaxMessageSize = ds.MaxMessageSize
		}
		if s.MaxEventQueue <= 0 {
			s.MaxEventQueue = ds.MaxEventQueue
		}
		if s.EventRate <= 0 {
			s.EventRate = ds.EventRate
		}
		if s.EventBurst <= 0 {
			s.EventBurst = ds.EventBurst
		}
		out.Session = &s
	}
	return &out
}

// SameOriginCheck accepts WebSocket upgrades whose Origin matches the Host.
// Requests without an Origin header (non-browser clients) are accepted.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
