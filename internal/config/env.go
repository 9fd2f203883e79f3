package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/billform/internal/errors"
)

// LookupFunc reads an environment variable. os.LookupEnv is one.
type LookupFunc func(key string) (string, bool)

// EnvLookup is the process environment.
var EnvLookup LookupFunc = os.LookupEnv

type envVar struct {
	name  string
	apply func(c *Config, v string) error
}

func str(set func(c *Config, v string)) func(*Config, string) error {
	return func(c *Config, v string) error {
		set(c, v)
		return nil
	}
}

func boolean(set func(c *Config, v bool)) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(c, b)
		return nil
	}
}

func integer(set func(c *Config, v int)) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		set(c, n)
		return nil
	}
}

func duration(set func(c *Config, v Duration)) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		set(c, Duration(d))
		return nil
	}
}

func list(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// envVars are applied in order; later entries win.
var envVars = []envVar{
	{"PORT", str(func(c *Config, v string) { c.Server.Address = ":" + v })},
	{"BILLFORM_ADDR", str(func(c *Config, v string) { c.Server.Address = v })},
	{"BILLFORM_MAX_SESSIONS", integer(func(c *Config, v int) { c.Server.MaxSessions = v })},
	{"BILLFORM_SHUTDOWN_TIMEOUT", duration(func(c *Config, v Duration) { c.Server.ShutdownTimeout = v })},
	{"BILLFORM_STYLESHEETS", str(func(c *Config, v string) { c.Server.StyleSheets = list(v) })},
	{"BILLFORM_ALLOWED_ORIGINS", str(func(c *Config, v string) { c.Server.AllowedOrigins = list(v) })},
	{"BILLFORM_EVENT_RATE", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Server.Session.EventRate = f
		return nil
	}},
	{"BILLFORM_LOCALE_DIR", str(func(c *Config, v string) { c.Locale.Dir = v })},
	{"BILLFORM_LOCALE_WATCH", boolean(func(c *Config, v bool) { c.Locale.Watch = v })},
	{"BILLFORM_EXPORT_STORE", str(func(c *Config, v string) { c.Export.Store = v })},
	{"BILLFORM_EXPORT_DIR", str(func(c *Config, v string) { c.Export.Dir = v })},
	{"BILLFORM_S3_BUCKET", str(func(c *Config, v string) { c.Export.S3.Bucket = v })},
	{"BILLFORM_S3_PREFIX", str(func(c *Config, v string) { c.Export.S3.Prefix = v })},
	{"BILLFORM_S3_REGION", str(func(c *Config, v string) { c.Export.S3.Region = v })},
	{"BILLFORM_S3_ENDPOINT", str(func(c *Config, v string) { c.Export.S3.Endpoint = v })},
	{"BILLFORM_S3_PATH_STYLE", boolean(func(c *Config, v bool) { c.Export.S3.PathStyle = v })},
	{"AWS_ACCESS_KEY_ID", str(func(c *Config, v string) { c.Export.S3.AccessKeyID = v })},
	{"AWS_SECRET_ACCESS_KEY", str(func(c *Config, v string) { c.Export.S3.SecretAccessKey = v })},
	{"BILLFORM_METRICS", boolean(func(c *Config, v bool) { c.Metrics.Enabled = v })},
	{"BILLFORM_LOG_LEVEL", str(func(c *Config, v string) { c.Log.Level = strings.ToLower(v) })},
	{"BILLFORM_LOG_FORMAT", str(func(c *Config, v string) { c.Log.Format = strings.ToLower(v) })},
}

// EnvVars lists the environment variables ApplyEnv reads.
func EnvVars() []string {
	names := make([]string, len(envVars))
	for i, ev := range envVars {
		names[i] = ev.name
	}
	return names
}

// ApplyEnv overrides fields from the environment. A nil lookup reads the
// process environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = EnvLookup
	}
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.apply(c, v); err != nil {
			return errors.New("E103").
				WithDetail(ev.name + "=" + v + " could not be parsed.").
				Wrap(err)
		}
	}
	return nil
}
