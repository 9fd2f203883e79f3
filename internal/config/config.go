package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/billform/internal/errors"
	"github.com/vango-dev/billform/pkg/export"
	"github.com/vango-dev/billform/pkg/server"
)

// FileNames are the configuration files Load looks for, in order.
var FileNames = []string{"billform.yaml", "billform.yml", "billform.json"}

// Config is the complete billform configuration.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Locale  LocaleConfig  `json:"locale" yaml:"locale"`
	Export  ExportConfig  `json:"export" yaml:"export"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Log     LogConfig     `json:"log" yaml:"log"`

	path string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address           string   `json:"address" yaml:"address" validate:"required"`
	ReadHeaderTimeout Duration `json:"read_header_timeout" yaml:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	CleanupInterval   Duration `json:"cleanup_interval" yaml:"cleanup_interval" validate:"gte=0"`
	MaxSessions       int      `json:"max_sessions" yaml:"max_sessions" validate:"gte=0"`

	// StyleSheets and Scripts are linked from every page.
	StyleSheets []string `json:"stylesheets,omitempty" yaml:"stylesheets,omitempty"`
	Scripts     []string `json:"scripts,omitempty" yaml:"scripts,omitempty"`

	// AllowedOrigins are accepted for WebSocket upgrades in addition to
	// the page's own origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" validate:"dive,url"`

	Session SessionConfig `json:"session" yaml:"session"`
}

// SessionConfig configures live sessions.
type SessionConfig struct {
	ReadTimeout       Duration `json:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout      Duration `json:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	HeartbeatInterval Duration `json:"heartbeat_interval" yaml:"heartbeat_interval" validate:"gte=0,ltfield=ReadTimeout"`
	AttachTimeout     Duration `json:"attach_timeout" yaml:"attach_timeout" validate:"gte=0"`
	MaxMessageSize    int64    `json:"max_message_size" yaml:"max_message_size" validate:"gte=0,lte=1048576"`
	MaxEventQueue     int      `json:"max_event_queue" yaml:"max_event_queue" validate:"gte=0"`
	EventRate         float64  `json:"event_rate" yaml:"event_rate" validate:"gte=0"`
	EventBurst        int      `json:"event_burst" yaml:"event_burst" validate:"gte=0"`
}

// LocaleConfig configures label overrides.
type LocaleConfig struct {
	// Dir holds *.yaml locale files layered over the built-in catalog.
	Dir      string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	Watch    bool     `json:"watch" yaml:"watch"`
	Debounce Duration `json:"debounce" yaml:"debounce" validate:"gte=0"`
}

// ExportConfig selects where exported documents go. An empty Store
// disables export.
type ExportConfig struct {
	Store   string          `json:"store,omitempty" yaml:"store,omitempty" validate:"omitempty,oneof=disk s3"`
	Dir     string          `json:"dir,omitempty" yaml:"dir,omitempty" validate:"required_if=Store disk"`
	MaxSize int64           `json:"max_size" yaml:"max_size" validate:"gte=0"`
	S3      export.S3Config `json:"s3" yaml:"s3" validate:"-"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace" validate:"omitempty,excludesall=- ."`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" validate:"oneof=text json"`
}

// New returns the default configuration.
func New() *Config {
	sc := server.DefaultConfig()
	ss := sc.Session
	return &Config{
		Server: ServerConfig{
			Address:           sc.Address,
			ReadHeaderTimeout: Duration(sc.ReadHeaderTimeout),
			ShutdownTimeout:   Duration(sc.ShutdownTimeout),
			CleanupInterval:   Duration(sc.CleanupInterval),
			Session: SessionConfig{
				ReadTimeout:       Duration(ss.ReadTimeout),
				WriteTimeout:      Duration(ss.WriteTimeout),
				HeartbeatInterval: Duration(ss.HeartbeatInterval),
				AttachTimeout:     Duration(ss.AttachTimeout),
				MaxMessageSize:    ss.MaxMessageSize,
				MaxEventQueue:     ss.MaxEventQueue,
				EventRate:         ss.EventRate,
				EventBurst:        ss.EventBurst,
			},
		},
		Locale: LocaleConfig{
			Debounce: Duration(250 * time.Millisecond),
		},
		Export: ExportConfig{
			MaxSize: 4 << 20,
			S3:      export.S3Config{Region: "us-east-1"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "billform",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the first of FileNames found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E100").
		WithDetail("No billform.yaml, billform.yml or billform.json in " + dir + ".").
		WithSuggestion("run 'billform config init' to write one")
}

// LoadFile reads the configuration file at path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("E100").WithDetail(path + " does not exist.")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, parseError(path, err, yamlLine(err))
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, parseError(path, err, jsonLine(data, err))
		}
	default:
		return nil, errors.New("E104").WithDetail(path + " has extension " + ext + ".")
	}
	cfg.path = path
	return cfg, nil
}

func parseError(path string, err error, line int) *errors.Error {
	e := errors.New("E101").Wrap(err)
	if line > 0 {
		e.WithLocation(path, line, 0)
	}
	return e
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

func yamlLine(err error) int {
	m := yamlLineRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func jsonLine(data []byte, err error) int {
	var offset int64
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case stderrors.As(err, &syn):
		offset = syn.Offset
	case stderrors.As(err, &typ):
		offset = typ.Offset
	default:
		return 0
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}

// Discover loads explicit if set, otherwise the configuration file in dir
// if one exists, otherwise the defaults. Environment overrides from lookup
// are applied and the result is validated.
func Discover(dir, explicit string, lookup LookupFunc) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if explicit != "" {
		cfg, err = LoadFile(explicit)
	} else {
		cfg, err = Load(dir)
		if stderrors.Is(err, errors.New("E100")) {
			cfg, err = New(), nil
		}
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path, as YAML or JSON by extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return errors.New("E104").WithDetail(path + " is neither YAML nor JSON.")
	}
	if err != nil {
		return errors.New("E101").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E161").Wrap(err)
	}
	c.path = path
	return nil
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// Validate checks every field, and the S3 settings when S3 is selected.
func (c *Config) Validate() error {
	var problems []string
	collect := func(prefix string, err error) error {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			ns := fe.Namespace()
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			problems = append(problems, fmt.Sprintf("%s%s: %s", prefix, ns, describe(fe)))
		}
		return nil
	}

	if err := validate.Struct(c); err != nil {
		if err := collect("", err); err != nil {
			return errors.New("E102").Wrap(err)
		}
	}
	if c.Export.Store == "s3" {
		if err := validate.Struct(c.Export.S3); err != nil {
			if err := collect("export.s3.", err); err != nil {
				return errors.New("E102").Wrap(err)
			}
		}
	}
	if len(problems) > 0 {
		e := errors.New("E102").WithDetail(strings.Join(problems, "; "))
		if c.path != "" {
			e.Location = &errors.Location{File: c.path}
		}
		return e
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "ltfield":
		return "must be less than " + fe.Param()
	case "url":
		return "must be a URL"
	default:
		return "failed " + fe.Tag()
	}
}
