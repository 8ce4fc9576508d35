package models

import (
	"time"

	"github.com/google/uuid"
)

// Prompt is a named, reusable text template for content generation.
// Templates may reference {transcript} and {title} placeholders.
type Prompt struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Template  string    `db:"template" json:"template"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewPrompt creates a Prompt with a fresh ID.
func NewPrompt(name, template string) *Prompt {
	now := time.Now()
	return &Prompt{
		ID:        uuid.New(),
		Name:      name,
		Template:  template,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
