package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/nikhilbhutani/speechgateway/internal/audio"
)

const (
	googleBaseURL        = "https://speech.googleapis.com"
	googleScope          = "https://www.googleapis.com/auth/cloud-platform"
	defaultGoogleTimeout = 90 * time.Second
)

var googleEncodings = map[string]bool{
	"LINEAR16":  true,
	"FLAC":      true,
	"MULAW":     true,
	"OGG_OPUS":  true,
	"MP3":       true,
	"WEBM_OPUS": true,
}

// GoogleConfig holds configuration for a Google Speech-to-Text compatible
// REST endpoint.
type GoogleConfig struct {
	Name    string
	BaseURL string // default: https://speech.googleapis.com
	Model   string
	Timeout time.Duration

	// APIKey is sent as the key query parameter. When empty the client
	// authenticates with Credentials or, failing that, application default
	// credentials.
	APIKey string

	// Credentials is a service account JSON document or a path to one.
	Credentials string

	HTTPClient *http.Client
}

// GoogleRecognizer calls the v1 speech:recognize REST method.
type GoogleRecognizer struct {
	name       string
	model      string
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewGoogleRecognizer(ctx context.Context, cfg GoogleConfig) (*GoogleRecognizer, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleBaseURL
	}
	if cfg.Name == "" {
		cfg.Name = "google"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGoogleTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		var err error
		client, err = googleHTTPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	return &GoogleRecognizer{
		name:       cfg.Name,
		model:      cfg.Model,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/v1/speech:recognize",
		httpClient: client,
	}, nil
}

func googleHTTPClient(ctx context.Context, cfg GoogleConfig) (*http.Client, error) {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return &http.Client{Timeout: cfg.Timeout}, nil
	}

	var creds *google.Credentials
	keyData := strings.TrimSpace(cfg.Credentials)
	switch {
	case keyData == "":
		c, err := google.FindDefaultCredentials(ctx, googleScope)
		if err != nil {
			return nil, fmt.Errorf("find default google credentials: %w", err)
		}
		creds = c
	default:
		jsonData := []byte(keyData)
		if !strings.HasPrefix(keyData, "{") {
			data, err := os.ReadFile(keyData)
			if err != nil {
				return nil, fmt.Errorf("read google credentials file: %w", err)
			}
			jsonData = data
		}
		c, err := google.CredentialsFromJSON(ctx, jsonData, googleScope)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		creds = c
	}

	client := oauth2.NewClient(ctx, creds.TokenSource)
	client.Timeout = cfg.Timeout
	return client, nil
}

func (g *GoogleRecognizer) Name() string { return g.name }

func (g *GoogleRecognizer) SupportsEncoding(encoding string) bool {
	return googleEncodings[encoding]
}

type googleRequest struct {
	Config googleConfig `json:"config"`
	Audio  googleAudio  `json:"audio"`
}

type googleConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz,omitempty"`
	LanguageCode               string `json:"languageCode"`
	MaxAlternatives            int    `json:"maxAlternatives,omitempty"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	EnableWordTimeOffsets      bool   `json:"enableWordTimeOffsets"`
	Model                      string `json:"model,omitempty"`
}

type googleAudio struct {
	Content string `json:"content"`
}

type googleResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				StartTime string `json:"startTime"`
				EndTime   string `json:"endTime"`
				Word      string `json:"word"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"results"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GoogleRecognizer) Recognize(ctx context.Context, req Request) ([]Result, error) {
	if !googleEncodings[req.Encoding] {
		return nil, audioError(g.name, fmt.Errorf("encoding %s is not supported", req.Encoding))
	}
	if req.Encoding == "LINEAR16" {
		if err := audio.ValidateLinear16(req.Audio, req.SampleRateHertz); err != nil {
			return nil, audioError(g.name, err)
		}
	}

	body, err := json.Marshal(googleRequest{
		Config: googleConfig{
			Encoding:                   req.Encoding,
			SampleRateHertz:            req.SampleRateHertz,
			LanguageCode:               req.LanguageCode,
			MaxAlternatives:            req.MaxAlternatives,
			EnableAutomaticPunctuation: req.EnableAutomaticPunctuation,
			EnableWordTimeOffsets:      req.EnableWordTimeOffsets,
			Model:                      g.model,
		},
		Audio: googleAudio{Content: base64.StdEncoding.EncodeToString(req.Audio)},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal google request: %w", err)
	}

	endpoint := g.endpoint
	if g.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(g.apiKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create google request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transportError(g.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(g.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		var apiErr googleError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, statusError(g.name, resp.StatusCode, msg)
	}

	var parsed googleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &EngineError{
			Provider: g.name,
			Message:  "parse response",
			Cause:    errors.Join(ErrBadResponse, err),
		}
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		var res Result
		for _, a := range r.Alternatives {
			alt := Alternative{
				Transcript: strings.TrimSpace(a.Transcript),
				Confidence: a.Confidence,
			}
			if req.EnableWordTimeOffsets {
				for _, w := range a.Words {
					alt.Words = append(alt.Words, Word{
						Word:  w.Word,
						Start: parseOffset(w.StartTime),
						End:   parseOffset(w.EndTime),
					})
				}
			}
			res.Alternatives = append(res.Alternatives, alt)
		}
		results = append(results, res)
	}
	return results, nil
}

// parseOffset reads a protobuf Duration in its JSON form ("1.500s").
func parseOffset(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
