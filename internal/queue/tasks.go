package queue

import "time"

const (
	TypeUsageRecord = "usage:record"

	// QueueUsage carries accounting tasks; they are never urgent.
	QueueUsage = "low"
)

// UsageRecordPayload describes one completed recognition.
type UsageRecordPayload struct {
	EventID      string    `json:"event_id"`
	KeyID        string    `json:"key_id"`
	RequestID    string    `json:"request_id,omitempty"`
	Backend      string    `json:"backend"`
	LanguageCode string    `json:"language_code"`
	Encoding     string    `json:"encoding"`
	AudioBytes   int64     `json:"audio_bytes"`
	Results      int       `json:"results"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
