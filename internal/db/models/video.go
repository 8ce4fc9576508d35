package models

import (
	"fmt"
	"time"
)

// Video represents one YouTube video and its transcription state.
// Exactly one row exists per VideoID; everything after creation is an update.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Video struct {
	VideoID         string     `db:"video_id"`
	VideoURL        string     `db:"video_url"`
	Status          Status     `db:"status"`
	Transcript      *string    `db:"transcript"`
	Title           *string    `db:"title"`
	ChannelName     *string    `db:"channel_name"`
	DurationSeconds *int64     `db:"duration_seconds"`
	ViewCount       *int64     `db:"view_count"`
	UploadDate      *time.Time `db:"upload_date"`
	ErrorMessage    *string    `db:"error_message"`
	AudioPath       *string    `db:"audio_path"`
	Ignored         bool       `db:"ignored"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// VideoMetadata holds the opportunistic metadata captured from a successful
// fetch, independent of whether transcription later succeeds.
type VideoMetadata struct {
	Title           string
	ChannelName     string
	DurationSeconds int64
	ViewCount       int64
	UploadDate      time.Time
}

// NewVideo creates a pending Video for the given external ID.
func NewVideo(videoID string) *Video {
	now := time.Now()
	return &Video{
		VideoID:   videoID,
		VideoURL:  WatchURL(videoID),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WatchURL returns the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// HasTranscript reports whether a transcript is stored. True implies
// Status == StatusSuccess.
func (v *Video) HasTranscript() bool {
	return v.Transcript != nil && *v.Transcript != ""
}

// ProcessingStaleSince reports whether the video has been stuck in
// processing since before the cutoff, i.e. an orphaned attempt.
func (v *Video) ProcessingStaleSince(cutoff time.Time) bool {
	return v.Status == StatusProcessing && v.UpdatedAt.Before(cutoff)
}
