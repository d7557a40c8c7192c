package internal

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.App.HTTP.Address() != ":8080" {
		t.Errorf("address = %s", cfg.App.HTTP.Address())
	}
	if cfg.Data.SQLitePath() != filepath.Join("./data", "dagaz.db") {
		t.Errorf("sqlite path = %s", cfg.Data.SQLitePath())
	}
	if cfg.Auth.AuthEnabled() {
		t.Error("auth enabled by default")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("port 0 passed validation")
	}

	cfg = NewDefaultConfig()
	cfg.Data.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty data dir passed validation")
	}

	cfg = NewDefaultConfig()
	cfg.Image.Quality = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("quality 1.5 passed validation")
	}
}

func TestAuthConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = AuthModeToken
	if err := cfg.Validate(); err == nil {
		t.Error("token mode with empty token passed validation")
	}
	cfg.Auth.Token = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("token mode with token failed: %v", err)
	}
	if !cfg.Auth.AuthEnabled() {
		t.Error("AuthEnabled false in token mode")
	}

	// Empty mode normalizes to disabled.
	cfg = NewDefaultConfig()
	cfg.Auth.Mode = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty mode failed: %v", err)
	}
	if cfg.Auth.Mode != AuthModeDisabled {
		t.Errorf("mode = %q after validation", cfg.Auth.Mode)
	}

	cfg.Auth.Mode = "mystery"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown mode passed validation")
	}
}
