package models

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedContent is an AI-generated artifact attached to a video.
// It never participates in the video's transcription state machine.
type GeneratedContent struct {
	ID               uuid.UUID `db:"id" json:"id"`
	VideoID          string    `db:"video_id" json:"video_id"`
	PromptID         uuid.UUID `db:"prompt_id" json:"prompt_id"`
	Model            string    `db:"model" json:"model"`
	Content          string    `db:"content" json:"content"`
	PromptTokens     int       `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int       `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int       `db:"total_tokens" json:"total_tokens"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// NewGeneratedContent creates a GeneratedContent row with a fresh ID.
func NewGeneratedContent(videoID string, promptID uuid.UUID, model, content string) *GeneratedContent {
	return &GeneratedContent{
		ID:        uuid.New(),
		VideoID:   videoID,
		PromptID:  promptID,
		Model:     model,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
