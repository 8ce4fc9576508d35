// Package queue moves transcription jobs through RabbitMQ so requests can
// be accepted immediately and processed by a worker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// TranscribeJob is the message a worker consumes to run one transcription.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type TranscribeJob struct {
	ID         uuid.UUID `json:"id"`
	VideoID    string    `json:"video_id"`
	AllowRetry bool      `json:"allow_retry"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTranscribeJob creates a job for one video ID.
func NewTranscribeJob(videoID string, allowRetry bool) *TranscribeJob {
	return &TranscribeJob{
		ID:         uuid.New(),
		VideoID:    videoID,
		AllowRetry: allowRetry,
		EnqueuedAt: time.Now().UTC(),
	}
}
