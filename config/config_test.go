package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wippyai/bridge-runtime/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	want := Config{EnableLogging: false, EnableCaching: true, MaxRetries: 3, TimeoutMs: 5000}
	if cfg != want {
		t.Errorf("Default = %+v, want %+v", cfg, want)
	}
	if cfg.Timeout() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFromTOML(t *testing.T) {
	cfg, err := FromTOML([]byte("enable_logging = true\nmax_retries = 7\n"), Default())
	if err != nil {
		t.Fatalf("FromTOML: %v", err)
	}
	want := Config{EnableLogging: true, EnableCaching: true, MaxRetries: 7, TimeoutMs: 5000}
	if cfg != want {
		t.Errorf("FromTOML = %+v, want %+v", cfg, want)
	}
}

func TestFromTOML_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "retries = 1"},
		{"wrong type", `timeout_ms = "soon"`},
		{"malformed", "enable_logging = "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromTOML([]byte(tt.data), Default())
			if kind, _ := errors.KindOf(err); kind != errors.KindInvalidInput {
				t.Errorf("err = %v, want invalid_input", err)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	environ := map[string]string{
		"BRIDGE_ENABLE_CACHING": "false",
		"BRIDGE_TIMEOUT_MS":     "250",
		"TIMEOUT_MS":            "1",
	}
	cfg, err := FromEnv(Default(), environ)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	want := Config{EnableLogging: false, EnableCaching: false, MaxRetries: 3, TimeoutMs: 250}
	if cfg != want {
		t.Errorf("FromEnv = %+v, want %+v", cfg, want)
	}

	_, err = FromEnv(Default(), map[string]string{"BRIDGE_MAX_RETRIES": "many"})
	if kind, _ := errors.KindOf(err); kind != errors.KindInvalidInput {
		t.Errorf("bad int: err = %v, want invalid_input", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.toml")
	if err := os.WriteFile(path, []byte("max_retries = 1\ntimeout_ms = 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRIDGE_TIMEOUT_MS", "900")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRetries != 1 || cfg.TimeoutMs != 900 {
		t.Errorf("Load = %+v, want retries 1 and env timeout 900", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	t.Setenv("BRIDGE_MAX_RETRIES", "-1")
	if _, err := Load(""); err == nil {
		t.Error("expected validation error for negative retries")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"defaults", Default(), true},
		{"zero", Config{}, true},
		{"negative retries", Config{MaxRetries: -1}, false},
		{"negative timeout", Config{TimeoutMs: -5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, ok = %v", err, tt.ok)
			}
		})
	}
}
