package config

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/vango-dev/billform/internal/errors"
	"github.com/vango-dev/billform/pkg/export"
	"github.com/vango-dev/billform/pkg/metrics"
	"github.com/vango-dev/billform/pkg/server"
)

// ServerConfig converts the server section for server.New.
func (c *Config) ServerConfig() *server.Config {
	s := c.Server
	sc := &server.Config{
		Address:           s.Address,
		ReadHeaderTimeout: s.ReadHeaderTimeout.D(),
		ShutdownTimeout:   s.ShutdownTimeout.D(),
		CleanupInterval:   s.CleanupInterval.D(),
		MaxSessions:       s.MaxSessions,
		StyleSheets:       s.StyleSheets,
		Scripts:           s.Scripts,
		Session: &server.SessionConfig{
			ReadTimeout:       s.Session.ReadTimeout.D(),
			WriteTimeout:      s.Session.WriteTimeout.D(),
			HeartbeatInterval: s.Session.HeartbeatInterval.D(),
			AttachTimeout:     s.Session.AttachTimeout.D(),
			MaxMessageSize:    s.Session.MaxMessageSize,
			MaxEventQueue:     s.Session.MaxEventQueue,
			EventRate:         s.Session.EventRate,
			EventBurst:        s.Session.EventBurst,
		},
	}
	if len(s.AllowedOrigins) > 0 {
		sc.CheckOrigin = originChecker(s.AllowedOrigins)
	}
	return sc
}

// originChecker accepts same-origin upgrades and the listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	hosts := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return func(r *http.Request) bool {
		if server.SameOriginCheck(r) {
			return true
		}
		u, err := url.Parse(r.Header.Get("Origin"))
		return err == nil && slices.Contains(hosts, u.Host)
	}
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewMetrics builds the metrics set on a fresh registry, or returns nil
// when metrics are disabled.
func (c *Config) NewMetrics() *metrics.Metrics {
	if !c.Metrics.Enabled {
		return nil
	}
	return metrics.New(metrics.WithNamespace(c.Metrics.Namespace))
}

// OpenStore opens the configured export store. It returns nil when export
// is disabled.
func (c *Config) OpenStore() (export.Store, error) {
	switch c.Export.Store {
	case "":
		return nil, nil
	case "disk":
		s, err := export.NewDiskStore(c.Export.Dir, c.Export.MaxSize)
		if err != nil {
			return nil, errors.New("E140").Wrap(err)
		}
		return s, nil
	case "s3":
		client := export.NewS3Client(c.Export.S3)
		return export.NewS3Store(client, c.Export.S3.Bucket, c.Export.S3.Prefix, c.Export.MaxSize), nil
	default:
		return nil, errors.New("E102").WithDetail("export.store: must be one of disk s3")
	}
}
