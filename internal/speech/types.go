// Package speech implements the recognize pipeline: payload admission,
// request validation, backend selection and response normalization.
package speech

import (
	"encoding/json"
	"strconv"
	"time"
)

// Encoding is an audio codec identifier accepted in RecognitionConfig.
type Encoding string

const (
	EncodingLinear16 Encoding = "LINEAR16"
	EncodingFLAC     Encoding = "FLAC"
	EncodingMulaw    Encoding = "MULAW"
	EncodingOggOpus  Encoding = "OGG_OPUS"
	EncodingMP3      Encoding = "MP3"
	EncodingWebmOpus Encoding = "WEBM_OPUS"
)

var supportedEncodings = []Encoding{
	EncodingLinear16,
	EncodingFLAC,
	EncodingMulaw,
	EncodingOggOpus,
	EncodingMP3,
	EncodingWebmOpus,
}

// SupportedEncodings returns the codec identifiers the gateway accepts.
func SupportedEncodings() []Encoding {
	out := make([]Encoding, len(supportedEncodings))
	copy(out, supportedEncodings)
	return out
}

// ParseEncoding matches s against the supported set. Matching is exact.
func ParseEncoding(s string) (Encoding, bool) {
	for _, e := range supportedEncodings {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// RecognitionConfig is the validated form of the request's config object.
type RecognitionConfig struct {
	Encoding                   Encoding
	SampleRateHertz            int // 0 when absent
	LanguageCode               string
	EnableAutomaticPunctuation bool
	MaxAlternatives            int
	EnableWordTimeOffsets      bool
}

// RecognizeRequest is a validated request. Audio holds the decoded bytes.
type RecognizeRequest struct {
	Config RecognitionConfig
	Audio  []byte
}

type RecognizeResponse struct {
	Results []SpeechRecognitionResult `json:"results"`
}

type SpeechRecognitionResult struct {
	Alternatives []SpeechRecognitionAlternative `json:"alternatives"`
}

type SpeechRecognitionAlternative struct {
	Transcript string     `json:"transcript"`
	Confidence float64    `json:"confidence"`
	Words      []WordInfo `json:"words,omitempty"`
}

type WordInfo struct {
	Word        string `json:"word"`
	StartOffset Offset `json:"startOffset"`
	EndOffset   Offset `json:"endOffset"`
}

// Offset is a position in the audio, encoded on the wire as seconds with a
// trailing "s" ("1.500s").
type Offset time.Duration

func (o Offset) Duration() time.Duration { return time.Duration(o) }

func (o Offset) String() string {
	return strconv.FormatFloat(time.Duration(o).Seconds(), 'f', 3, 64) + "s"
}

func (o Offset) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}
