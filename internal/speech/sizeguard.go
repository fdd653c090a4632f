package speech

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nikhilbhutani/speechgateway/internal/apierror"
)

const (
	// DefaultMaxAudioBytes is the decoded audio bound applied when none is
	// configured (10 MiB).
	DefaultMaxAudioBytes int64 = 10 << 20

	// envelopeSlack is the room left in the raw body bound for the JSON
	// envelope around audio.content.
	envelopeSlack int64 = 1 << 20
)

// SizeGuard rejects payloads whose decoded audio would exceed the configured
// bound, before any decode buffer is allocated.
type SizeGuard struct {
	maxAudio int64
}

func NewSizeGuard(maxAudioBytes int64) *SizeGuard {
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	return &SizeGuard{maxAudio: maxAudioBytes}
}

func (g *SizeGuard) MaxAudioBytes() int64 { return g.maxAudio }

// MaxBodyBytes bounds the raw request body: the base64 expansion of the
// largest accepted audio plus the envelope slack.
func (g *SizeGuard) MaxBodyBytes() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(g.maxAudio))) + envelopeSlack
}

// ReadBody reads the request body, failing with PayloadTooLarge as soon as
// it grows past MaxBodyBytes.
func (g *SizeGuard) ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := g.MaxBodyBytes()
	if r.ContentLength > limit {
		return nil, g.tooLarge(fmt.Errorf("content length %d exceeds %d", r.ContentLength, limit))
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, g.tooLarge(err)
		}
		return nil, apierror.InvalidArgument("Failed to read request body.", err)
	}
	return body, nil
}

// Check computes the decoded size of audio.content from its encoded length.
// Bodies without a string audio.content pass; the validator reports them.
func (g *SizeGuard) Check(body []byte) error {
	content := gjson.GetBytes(body, "audio.content")
	if content.Type != gjson.String {
		return nil
	}
	if n := DecodedLen(content.Str); n > g.maxAudio {
		return g.tooLarge(fmt.Errorf("decoded audio is %d bytes", n))
	}
	return nil
}

func (g *SizeGuard) tooLarge(cause error) error {
	return apierror.PayloadTooLarge(
		fmt.Sprintf("Request payload size exceeds the limit: %d bytes.", g.maxAudio), cause)
}

// DecodedLen returns the number of bytes standard base64 decoding of s would
// produce. Line breaks are ignored the way the decoder ignores them; for
// malformed input the result is an upper bound.
func DecodedLen(s string) int64 {
	n := int64(len(s))
	if strings.ContainsAny(s, "\r\n") {
		n -= int64(strings.Count(s, "\r") + strings.Count(s, "\n"))
		s = strings.TrimRight(s, "\r\n")
	}

	pad := int64(0)
	for i := len(s) - 1; i >= 0 && pad < 2 && s[i] == '='; i-- {
		pad++
	}

	decoded := n/4*3 + n%4*3/4 - pad
	if decoded < 0 {
		return 0
	}
	return decoded
}
