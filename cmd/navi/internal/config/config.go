// Package config loads the navi CLI configuration.
//
// The configuration is a single YAML file. Its location is, in order:
// the --config flag, $NAVI_CONFIG, or navi.yaml under os.UserConfigDir():
//
//	~/Library/Application Support/navi/navi.yaml   (macOS)
//	~/.config/navi/navi.yaml                       (Linux)
//	%AppData%/navi/navi.yaml                       (Windows)
//
// A missing file yields the defaults. Relative paths in the file are
// resolved against the directory holding it.
//
//	backend: onnx
//	model:
//	  descriptor: commands/model.yaml
//	storage:
//	  kind: s3
//	  bucket: navi-models
//	  region: eu-west-1
//	history:
//	  dir: history
//	  archive: true
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "navi"

	// fileName is the configuration file inside appDir.
	fileName = "navi.yaml"

	// EnvPath overrides the configuration file location.
	EnvPath = "NAVI_CONFIG"
)

// Backends.
const (
	BackendRemote = "remote"
	BackendONNX   = "onnx"
	BackendNCNN   = "ncnn"
)

// Storage kinds.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config is the navi configuration.
type Config struct {
	// Path is the file the configuration was loaded from. It may not
	// exist.
	Path string `yaml:"-" json:"path"`
	// Dir is the directory relative paths are resolved against.
	Dir string `yaml:"-" json:"dir"`

	Backend string        `yaml:"backend" json:"backend"`
	Remote  RemoteConfig  `yaml:"remote" json:"remote"`
	Model   ModelConfig   `yaml:"model" json:"model"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	History HistoryConfig `yaml:"history" json:"history"`
	Serve   ServeConfig   `yaml:"serve" json:"serve"`
}

// RemoteConfig configures the prediction server backend.
type RemoteConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ModelConfig locates the on-device model descriptor inside Storage.
type ModelConfig struct {
	Descriptor string `yaml:"descriptor" json:"descriptor"`
}

// CaptureConfig configures the microphone.
type CaptureConfig struct {
	SampleRate  int           `yaml:"sample_rate" json:"sample_rate"`
	MaxDuration time.Duration `yaml:"max_duration" json:"max_duration"`
	Frame       time.Duration `yaml:"frame" json:"frame"`
}

// StorageConfig selects the file store holding model artifacts and the
// recording archive.
type StorageConfig struct {
	Kind string `yaml:"kind" json:"kind"`
	// Dir is the root of a local store.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	Bucket string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region string `yaml:"region,omitempty" json:"region,omitempty"`
	// Endpoint points at an S3-compatible service; path-style addressing
	// is used when set.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	// AccessKeyID and SecretAccessKey set static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"-"`
}

// HistoryConfig configures the classification history.
type HistoryConfig struct {
	Disabled bool `yaml:"disabled" json:"disabled"`
	// Dir is the badger directory. Ignored when InMemory is set.
	Dir      string `yaml:"dir" json:"dir"`
	InMemory bool   `yaml:"in_memory" json:"in_memory"`
	// Archive saves each recording as WAV to Storage.
	Archive bool `yaml:"archive" json:"archive"`
	// Keep prunes all but the newest Keep entries after each record.
	// Zero keeps everything.
	Keep int `yaml:"keep" json:"keep"`
}

// ServeConfig configures `navi serve`.
type ServeConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used when no file exists, rooted at
// dir.
func Default(dir string) *Config {
	return &Config{
		Dir:     dir,
		Path:    filepath.Join(dir, fileName),
		Backend: BackendRemote,
		Remote: RemoteConfig{
			URL:     classify.DefaultRemoteURL,
			Timeout: classify.DefaultRemoteTimeout,
		},
		Model: ModelConfig{Descriptor: "model.yaml"},
		Capture: CaptureConfig{
			SampleRate:  16000,
			MaxDuration: time.Minute,
			Frame:       20 * time.Millisecond,
		},
		Storage: StorageConfig{Kind: StorageLocal, Dir: filepath.Join(dir, "models")},
		History: HistoryConfig{Dir: filepath.Join(dir, "history")},
		Serve:   ServeConfig{Addr: "127.0.0.1:8080"},
	}
}

// DefaultPath returns the configuration file location without the --config
// flag: $NAVI_CONFIG or the user config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Load loads the configuration from path, or from DefaultPath when path
// is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration file at path. A missing file yields
// the defaults.
func LoadFrom(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	dir := filepath.Dir(abs)
	cfg := Default(dir)
	cfg.Path = abs

	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", abs, err)
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", abs, err)
	}
	return cfg, nil
}

func (c *Config) resolve() {
	c.Storage.Dir = c.abs(c.Storage.Dir)
	c.History.Dir = c.abs(c.History.Dir)
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRemote:
		if c.Remote.URL == "" {
			return errors.New("remote.url is required for the remote backend")
		}
	case BackendONNX, BackendNCNN:
		if c.Model.Descriptor == "" {
			return fmt.Errorf("model.descriptor is required for the %s backend", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %q (want remote, onnx or ncnn)", c.Backend)
	}

	if _, err := pcm.ParseFormat(c.Capture.SampleRate); err != nil {
		return fmt.Errorf("capture.sample_rate: %w", err)
	}
	if c.Capture.MaxDuration <= 0 {
		return errors.New("capture.max_duration must be positive")
	}

	switch c.Storage.Kind {
	case StorageLocal:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for local storage")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage kind %q (want local or s3)", c.Storage.Kind)
	}

	if !c.History.Disabled && !c.History.InMemory && c.History.Dir == "" {
		return errors.New("history.dir is required unless history is disabled or in memory")
	}
	if c.History.Keep < 0 {
		return errors.New("history.keep must not be negative")
	}
	return nil
}
