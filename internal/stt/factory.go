package stt

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/speechgateway/internal/config"
)

// FromConfig builds the recognizer described by a backend registry entry.
func FromConfig(ctx context.Context, b config.Backend) (Recognizer, error) {
	var (
		r        Recognizer
		supports func(string) bool
	)

	switch b.Type {
	case config.BackendWhisper:
		w := NewWhisperRecognizer(WhisperConfig{
			Name:    b.Name,
			APIKey:  b.APIKey(),
			BaseURL: b.BaseURL,
			Model:   b.Model,
			Timeout: b.Timeout,
		})
		r, supports = w, w.SupportsEncoding
	case config.BackendGoogle:
		g, err := NewGoogleRecognizer(ctx, GoogleConfig{
			Name:        b.Name,
			BaseURL:     b.BaseURL,
			Model:       b.Model,
			Timeout:     b.Timeout,
			APIKey:      b.APIKey(),
			Credentials: b.Credentials,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", b.Name, err)
		}
		r, supports = g, g.SupportsEncoding
	default:
		return nil, fmt.Errorf("backend %s: unsupported type %q", b.Name, b.Type)
	}

	for _, enc := range b.Encodings {
		if !supports(enc) {
			return nil, fmt.Errorf("backend %s: type %s cannot decode %s", b.Name, b.Type, enc)
		}
	}
	return r, nil
}
