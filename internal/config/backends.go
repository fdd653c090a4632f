package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend types understood by the recognizer factory.
const (
	BackendWhisper = "whisper"
	BackendGoogle  = "google"
)

// BackendsFile is the on-disk registry of recognition backends.
type BackendsFile struct {
	Backends []Backend `yaml:"backends"`
}

// Backend declares one recognition engine and the (language, encoding)
// pairs it serves.
type Backend struct {
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	Languages []string      `yaml:"languages"`
	Encodings []string      `yaml:"encodings"`

	// Google only: service account JSON (inline or file path). When empty and
	// no API key is configured, application default credentials are used.
	Credentials string `yaml:"credentials"`
}

// APIKey resolves the upstream key from the environment variable named by
// APIKeyEnv.
func (b Backend) APIKey() string {
	if b.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(b.APIKeyEnv)
}

// LoadBackends reads and validates a backend registry file.
func LoadBackends(path string) (*BackendsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backends file %s: %w", path, err)
	}
	return ParseBackends(data)
}

func ParseBackends(data []byte) (*BackendsFile, error) {
	var f BackendsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse backends file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("backends file: %w", err)
	}
	return &f, nil
}

func (f *BackendsFile) Validate() error {
	if len(f.Backends) == 0 {
		return fmt.Errorf("no backends configured")
	}
	names := make(map[string]bool, len(f.Backends))
	for i, b := range f.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend #%d: name is required", i+1)
		}
		if names[b.Name] {
			return fmt.Errorf("backend %q: duplicate name", b.Name)
		}
		names[b.Name] = true
		if err := b.Validate(); err != nil {
			return fmt.Errorf("backend %q: %w", b.Name, err)
		}
	}
	return nil
}

func (b Backend) Validate() error {
	switch b.Type {
	case BackendWhisper, BackendGoogle:
	default:
		return fmt.Errorf("unsupported type %q (want %s or %s)", b.Type, BackendWhisper, BackendGoogle)
	}
	if len(b.Languages) == 0 {
		return fmt.Errorf("at least one language is required")
	}
	for _, l := range b.Languages {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("empty language code")
		}
	}
	if len(b.Encodings) == 0 {
		return fmt.Errorf("at least one encoding is required")
	}
	if b.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
