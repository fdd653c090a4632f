package speech

import (
	"math"
	"sort"

	"github.com/nikhilbhutani/speechgateway/internal/stt"
)

// Normalize maps engine output onto the wire schema: alternatives sorted by
// descending confidence and cut to maxAlternatives, confidences clamped to
// [0,1], words dropped unless word offsets were requested. Results is never
// nil.
func Normalize(results []stt.Result, cfg RecognitionConfig) *RecognizeResponse {
	limit := cfg.MaxAlternatives
	if limit < 1 {
		limit = 1
	}

	resp := &RecognizeResponse{Results: make([]SpeechRecognitionResult, 0, len(results))}
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}

		alts := make([]SpeechRecognitionAlternative, 0, len(r.Alternatives))
		for _, a := range r.Alternatives {
			alt := SpeechRecognitionAlternative{
				Transcript: a.Transcript,
				Confidence: clampConfidence(a.Confidence),
			}
			if cfg.EnableWordTimeOffsets && len(a.Words) > 0 {
				alt.Words = make([]WordInfo, 0, len(a.Words))
				for _, w := range a.Words {
					alt.Words = append(alt.Words, WordInfo{
						Word:        w.Word,
						StartOffset: Offset(max(w.Start, 0)),
						EndOffset:   Offset(max(w.End, w.Start, 0)),
					})
				}
			}
			alts = append(alts, alt)
		}

		sort.SliceStable(alts, func(i, j int) bool {
			return alts[i].Confidence > alts[j].Confidence
		})
		if len(alts) > limit {
			alts = alts[:limit]
		}
		resp.Results = append(resp.Results, SpeechRecognitionResult{Alternatives: alts})
	}
	return resp
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
