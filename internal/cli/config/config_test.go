package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Output != "table" {
		t.Errorf("Output = %q, want table", cfg.Output)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.Profiles == nil || len(cfg.Profiles) != 0 {
		t.Errorf("Profiles = %v, want empty map", cfg.Profiles)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !strings.HasSuffix(path, filepath.Join(".previewshare", "cli.yaml")) {
		t.Errorf("DefaultConfigPath() = %q", path)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want default", cfg.Output)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cli.yaml")

	cfg := Default()
	cfg.Output = "json"
	cfg.Timeout = 5 * time.Second
	if err := cfg.SetProfile("prod", Profile{Server: "https://preview.example.com", APIKey: "sk-prod"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.SetProfile("local", Profile{Server: "http://127.0.0.1:5080"}); err != nil {
		t.Fatal(err)
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Output != "json" || got.Timeout != 5*time.Second {
		t.Errorf("got Output=%q Timeout=%v", got.Output, got.Timeout)
	}
	if got.Current != "prod" {
		t.Errorf("Current = %q, want prod (first saved)", got.Current)
	}
	if p := got.Profiles["prod"]; p.APIKey != "sk-prod" {
		t.Errorf("prod profile = %+v", p)
	}
	if names := got.ProfileNames(); len(names) != 2 || names[0] != "local" {
		t.Errorf("ProfileNames() = %v", names)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "output: [", "parse"},
		{"bad output", "output: xml\n", "unknown format"},
		{"missing current", "current: prod\n", "not found"},
		{"profile without server", "profiles:\n  a:\n    api_key: k\n", "server is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cli.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProfileAndUse(t *testing.T) {
	cfg := Default()

	p, err := cfg.Profile("")
	if err != nil || p.Server != DefaultServer {
		t.Errorf("Profile(\"\") = %+v, %v", p, err)
	}
	if _, err := cfg.Profile("nope"); err == nil {
		t.Error("expected error for unknown profile")
	}
	if err := cfg.Use("nope"); err == nil {
		t.Error("expected error using unknown profile")
	}
	if err := cfg.SetProfile("", Profile{Server: "x"}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := cfg.SetProfile("a", Profile{}); err == nil {
		t.Error("expected error for empty server")
	}

	cfg.SetProfile("a", Profile{Server: "http://a"})
	cfg.SetProfile("b", Profile{Server: "http://b"})
	if err := cfg.Use("b"); err != nil {
		t.Fatal(err)
	}
	if p, _ := cfg.Profile(""); p.Server != "http://b" {
		t.Errorf("current profile server = %q, want http://b", p.Server)
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		EnvServer:  "http://env:5080",
		EnvAPIKey:  "sk-env",
		EnvTimeout: "3s",
	}
	o, err := EnvOverrides(func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}
	if o.Server != "http://env:5080" || o.APIKey != "sk-env" || o.Timeout != 3*time.Second {
		t.Errorf("EnvOverrides() = %+v", o)
	}

	env[EnvTimeout] = "soon"
	if _, err := EnvOverrides(func(k string) string { return env[k] }); err == nil {
		t.Error("expected error for bad timeout")
	}
}

func TestMerge(t *testing.T) {
	cfg := Default()
	cfg.SetProfile("prod", Profile{Server: "https://prod", APIKey: "sk-file"})

	r, err := Merge(cfg, "",
		Overrides{APIKey: "sk-env", Output: "yaml"},
		Overrides{Server: "http://flag"},
	)
	if err != nil {
		t.Fatal(err)
	}
	want := Resolved{Server: "http://flag", APIKey: "sk-env", Output: "yaml", Timeout: DefaultTimeout}
	if r != want {
		t.Errorf("Merge() = %+v, want %+v", r, want)
	}

	if _, err := Merge(cfg, "missing"); err == nil {
		t.Error("expected error for missing profile")
	}
}
