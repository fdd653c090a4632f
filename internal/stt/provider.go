// Package stt holds the recognition engine adapters the gateway dispatches to.
package stt

import (
	"context"
	"time"
)

// Request is a validated, decoded recognition job handed to an engine.
type Request struct {
	Audio                      []byte
	Encoding                   string
	SampleRateHertz            int // 0 when the caller did not declare one
	LanguageCode               string
	MaxAlternatives            int
	EnableAutomaticPunctuation bool
	EnableWordTimeOffsets      bool
}

// Result is one recognized segment of the audio.
type Result struct {
	Alternatives []Alternative
}

// Alternative is one hypothesis for a segment. Confidence is whatever the
// engine reports; callers normalize it.
type Alternative struct {
	Transcript string
	Confidence float64
	Words      []Word
}

// Word carries offsets relative to the start of the audio.
type Word struct {
	Word  string
	Start time.Duration
	End   time.Duration
}

// Recognizer is the interface for speech-to-text backends.
type Recognizer interface {
	Recognize(ctx context.Context, req Request) ([]Result, error)
	Name() string
}
