package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"

	"github.com/nikhilbhutani/speechgateway/internal/audio"
)

const (
	openAIBaseURL         = "https://api.openai.com/v1"
	localWhisperURL       = "http://localhost:8178/v1"
	defaultWhisperTimeout = 120 * time.Second
)

// whisperFiles maps request encodings to the upload file name Whisper uses
// to sniff the container.
var whisperFiles = map[string]string{
	"LINEAR16":  "audio.wav",
	"FLAC":      "audio.flac",
	"MP3":       "audio.mp3",
	"OGG_OPUS":  "audio.ogg",
	"WEBM_OPUS": "audio.webm",
}

// WhisperConfig holds configuration for an OpenAI-compatible transcription
// endpoint (OpenAI itself, a whisper.cpp server, faster-whisper, ...).
type WhisperConfig struct {
	Name       string
	APIKey     string
	BaseURL    string // default: OpenAI, or a local whisper.cpp server when no key is set
	Model      string // default: "whisper-1"
	Timeout    time.Duration
	HTTPClient *http.Client
}

// WhisperRecognizer transcribes audio with the OpenAI audio transcription API.
type WhisperRecognizer struct {
	name   string
	model  string
	client *openai.Client
}

func NewWhisperRecognizer(cfg WhisperConfig) *WhisperRecognizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIBaseURL
		if cfg.APIKey == "" {
			cfg.BaseURL = localWhisperURL
		}
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.Name == "" {
		cfg.Name = "whisper"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWhisperTimeout
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &WhisperRecognizer{
		name:   cfg.Name,
		model:  cfg.Model,
		client: openai.NewClientWithConfig(oc),
	}
}

func (w *WhisperRecognizer) Name() string { return w.name }

// SupportsEncoding reports whether Whisper can ingest the encoding.
func (w *WhisperRecognizer) SupportsEncoding(encoding string) bool {
	_, ok := whisperFiles[encoding]
	return ok
}

func (w *WhisperRecognizer) Recognize(ctx context.Context, req Request) ([]Result, error) {
	filename, ok := whisperFiles[req.Encoding]
	if !ok {
		return nil, audioError(w.name, fmt.Errorf("encoding %s is not supported", req.Encoding))
	}

	data := req.Audio
	if req.Encoding == "LINEAR16" {
		if err := audio.ValidateLinear16(data, req.SampleRateHertz); err != nil {
			return nil, audioError(w.name, err)
		}
		rate := req.SampleRateHertz
		if rate == 0 {
			rate = 16000
		}
		wav, err := audio.EnsureWAV(data, rate)
		if err != nil {
			return nil, audioError(w.name, err)
		}
		data = wav
	}

	areq := openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(data),
		Language: whisperLanguage(req.LanguageCode),
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularitySegment,
		},
	}
	if req.EnableWordTimeOffsets {
		areq.TimestampGranularities = append(areq.TimestampGranularities,
			openai.TranscriptionTimestampGranularityWord)
	}

	resp, err := w.client.CreateTranscription(ctx, areq)
	if err != nil {
		return nil, w.classify(ctx, err)
	}

	return whisperResults(resp, req), nil
}

func (w *WhisperRecognizer) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(w.name, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusError(w.name, reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode))
	}
	return transportError(w.name, err)
}

// whisperResults turns a verbose_json response into one result per segment.
// Word timestamps come back as a flat list and are attached to the segment
// they start in.
func whisperResults(resp openai.AudioResponse, req Request) []Result {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		if !req.EnableAutomaticPunctuation {
			s = stripPunctuation(s)
		}
		return s
	}

	if len(resp.Segments) == 0 {
		text := clean(resp.Text)
		if text == "" {
			return []Result{}
		}
		return []Result{{Alternatives: []Alternative{{Transcript: text}}}}
	}

	results := make([]Result, 0, len(resp.Segments))
	wi := 0
	for i, seg := range resp.Segments {
		// Words belong to the segment they start in; the last segment takes
		// any stragglers.
		last := i == len(resp.Segments)-1
		var words []Word
		for wi < len(resp.Words) && (last || resp.Words[wi].Start < seg.End) {
			if word := clean(resp.Words[wi].Word); word != "" {
				words = append(words, Word{
					Word:  word,
					Start: seconds(resp.Words[wi].Start),
					End:   seconds(resp.Words[wi].End),
				})
			}
			wi++
		}

		text := clean(seg.Text)
		if text == "" {
			continue
		}
		alt := Alternative{
			Transcript: text,
			Confidence: math.Exp(seg.AvgLogprob),
		}
		if req.EnableWordTimeOffsets {
			alt.Words = words
		}
		results = append(results, Result{Alternatives: []Alternative{alt}})
	}
	return results
}

// whisperLanguage reduces a BCP-47 tag to the base language Whisper expects.
func whisperLanguage(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

func stripPunctuation(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
