package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "navi.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(dir, "navi.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendRemote {
		t.Errorf("backend = %q", cfg.Backend)
	}
	if cfg.Remote.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Storage.Dir != filepath.Join(cfg.Dir, "models") {
		t.Errorf("storage dir = %q", cfg.Storage.Dir)
	}
	if cfg.History.Dir != filepath.Join(cfg.Dir, "history") {
		t.Errorf("history dir = %q", cfg.History.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
backend: onnx
remote:
  url: http://localhost:9000
  timeout: 3s
model:
  descriptor: commands/model.yaml
capture:
  sample_rate: 48000
  max_duration: 30s
storage:
  kind: local
  dir: artifacts
history:
  in_memory: true
  keep: 5
serve:
  addr: ":9999"
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendONNX {
		t.Errorf("backend = %q", cfg.Backend)
	}
	if cfg.Remote.URL != "http://localhost:9000" || cfg.Remote.Timeout != 3*time.Second {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if cfg.Capture.SampleRate != 48000 || cfg.Capture.MaxDuration != 30*time.Second {
		t.Errorf("capture = %+v", cfg.Capture)
	}
	if cfg.Capture.Frame != 20*time.Millisecond {
		t.Errorf("unset frame should keep default, got %v", cfg.Capture.Frame)
	}
	if want := filepath.Join(filepath.Dir(path), "artifacts"); cfg.Storage.Dir != want {
		t.Errorf("storage dir = %q, want %q", cfg.Storage.Dir, want)
	}
	if !cfg.History.InMemory || cfg.History.Keep != 5 {
		t.Errorf("history = %+v", cfg.History)
	}
	if cfg.Serve.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Serve.Addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"backend", "backend: tflite\n", "unknown backend"},
		{"sample rate", "capture:\n  sample_rate: 12345\n", "sample_rate"},
		{"storage kind", "storage:\n  kind: ftp\n", "unknown storage kind"},
		{"s3 bucket", "storage:\n  kind: s3\n", "storage.bucket"},
		{"keep", "history:\n  keep: -1\n", "history.keep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	if _, err := LoadFrom(writeConfig(t, "backend: [remote\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadUsesEnv(t *testing.T) {
	path := writeConfig(t, "serve:\n  addr: \":7000\"\n")
	t.Setenv(EnvPath, path)

	got, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if got != path {
		t.Fatalf("DefaultPath = %q, want %q", got, path)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Serve.Addr != ":7000" {
		t.Errorf("addr = %q", cfg.Serve.Addr)
	}
}

func TestLoadExplicitPathWins(t *testing.T) {
	t.Setenv(EnvPath, writeConfig(t, "serve:\n  addr: \":7000\"\n"))
	cfg, err := Load(writeConfig(t, "serve:\n  addr: \":7001\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Serve.Addr != ":7001" {
		t.Errorf("addr = %q", cfg.Serve.Addr)
	}
}
