package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keyline/internal/compiler"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var moduleNameRe = regexp.MustCompile(`^[A-Za-z0-9_.$-]+$`)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Library LibraryConfig     `yaml:"library"`
	Exports ExportsConfig     `yaml:"exports"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Preview PreviewConfig     `yaml:"preview"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Library, &c.Exports, &c.SQLite, &c.Auth, &c.Preview, &c.Events} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

// LibraryConfig holds the document library directory. With Watch set,
// edits made by other tools are indexed and reloaded into open sessions.
type LibraryConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ExportsConfig holds where compiled playback modules are written and the
// default page-script key they register under.
type ExportsConfig struct {
	Path       string `yaml:"path"`
	ModuleName string `yaml:"module_name"`
}

// Validate validates the exports configuration.
func (c *ExportsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.ModuleName, validation.Required, validation.Match(moduleNameRe)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration. An empty mode means disabled.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// PreviewConfig tunes editing sessions.
type PreviewConfig struct {
	// FrameInterval paces preview playback frames.
	FrameInterval time.Duration `yaml:"frame_interval"`
	// HistoryLimit bounds the undo stack of each open document. Zero
	// uses the history package default.
	HistoryLimit int `yaml:"history_limit"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FrameInterval, validation.Required, validation.Min(time.Millisecond), validation.Max(time.Second)),
		validation.Field(&c.HistoryLimit, validation.Min(0)),
	)
}

// EventsConfig tunes the SSE broker.
type EventsConfig struct {
	// IndexThrottle coalesces index.updated events.
	IndexThrottle time.Duration `yaml:"index_throttle"`
	// PreviewInterval is the minimum gap between preview.time events of
	// one document.
	PreviewInterval time.Duration `yaml:"preview_interval"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IndexThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.PreviewInterval, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Library: LibraryConfig{
			Path:  "./library",
			Watch: true,
		},
		Exports: ExportsConfig{
			Path:       "./exports",
			ModuleName: compiler.DefaultModuleName,
		},
		SQLite: SQLiteConfig{
			Path: "./keyline.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Preview: PreviewConfig{
			FrameInterval: 16 * time.Millisecond,
			HistoryLimit:  200,
		},
		Events: EventsConfig{
			IndexThrottle:   2 * time.Second,
			PreviewInterval: 50 * time.Millisecond,
		},
	}
}
