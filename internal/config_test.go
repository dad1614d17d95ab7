package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenMode(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}

	cfg.Token = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("empty token error = %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_SectionValidation(t *testing.T) {
	cases := map[string]func(*Config){
		"auth":          func(c *Config) { c.Auth.Mode, c.Auth.Token = "token", "" },
		"port":          func(c *Config) { c.App.HTTP.Port = 70000 },
		"library":       func(c *Config) { c.Library.Path = "" },
		"exports":       func(c *Config) { c.Exports.Path = "" },
		"module name":   func(c *Config) { c.Exports.ModuleName = "bad name'" },
		"sqlite":        func(c *Config) { c.SQLite.Path = "" },
		"frame":         func(c *Config) { c.Preview.FrameInterval = 0 },
		"slow frame":    func(c *Config) { c.Preview.FrameInterval = 2 * time.Second },
		"history":       func(c *Config) { c.Preview.HistoryLimit = -1 },
		"throttle":      func(c *Config) { c.Events.IndexThrottle = -time.Second },
		"preview gap":   func(c *Config) { c.Events.PreviewInterval = -time.Millisecond },
		"shutdown wait": func(c *Config) { c.App.HTTP.ShutdownTimeout = -time.Second },
	}
	for name, mutate := range cases {
		cfg := NewDefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
