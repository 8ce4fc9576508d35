// Package repository provides data access for videos, prompts, and
// generated content.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
)

// ErrLostOwnership is returned when a terminal write finds the row no longer
// in processing, i.e. another actor resolved or reclaimed the attempt.
var ErrLostOwnership = errors.New("video attempt no longer owned")

// VideoFilters narrows List results.
type VideoFilters struct {
	Status         *models.Status
	IncludeIgnored bool
	Limit          int
	Offset         int
}

// VideoRepository defines operations for managing video records.
type VideoRepository interface {
	// Create inserts a new pending video. Returns db.ErrDuplicateKey when a
	// row for the video ID already exists.
	Create(ctx context.Context, video *models.Video) error

	// GetByVideoID retrieves a single video by external ID.
	GetByVideoID(ctx context.Context, videoID string) (*models.Video, error)

	// List retrieves videos with pagination and filtering, newest first.
	// Ignored videos are excluded unless filters.IncludeIgnored is set.
	List(ctx context.Context, filters *VideoFilters) ([]*models.Video, int, error)

	// ListByStatus retrieves up to limit non-ignored videos in the given status.
	ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Video, error)

	// AcquireForProcessing atomically moves the row into processing and
	// reports whether this caller won. Eligible rows are pending ones,
	// processing rows stale since before staleBefore, and, when allowRetry
	// is set, failed/rate_limited rows. A concurrent duplicate request
	// loses the conditional update and gets false.
	AcquireForProcessing(ctx context.Context, videoID string, staleBefore time.Time, allowRetry bool) (bool, error)

	// MarkSuccess stores the transcript, clears the error and the cached
	// audio path, and moves processing -> success.
	MarkSuccess(ctx context.Context, videoID, transcript string) error

	// MarkFailure stores the classified error and moves processing ->
	// failed or rate_limited.
	MarkFailure(ctx context.Context, videoID string, status models.Status, errorMessage string) error

	// UpdateMetadata opportunistically stores fetch metadata and the local
	// audio artifact path, independent of transcription outcome.
	UpdateMetadata(ctx context.Context, videoID string, meta *models.VideoMetadata, audioPath string) error

	// SetIgnored flips only the ignored flag.
	SetIgnored(ctx context.Context, videoID string, ignored bool) error

	// Delete removes a video and its generated content (cascade).
	Delete(ctx context.Context, videoID string) error

	// ReclaimStale moves processing rows stale since before staleBefore
	// back to pending and returns how many were reclaimed.
	ReclaimStale(ctx context.Context, staleBefore time.Time) (int64, error)

	// CountByStatus returns per-status row counts.
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}

type videoRepository struct {
	pool *pgxpool.Pool
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(pool *pgxpool.Pool) VideoRepository {
	return &videoRepository{pool: pool}
}

const videoColumns = `video_id, video_url, status, transcript, title, channel_name,
	duration_seconds, view_count, upload_date, error_message, audio_path, ignored,
	created_at, updated_at`

func (r *videoRepository) Create(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (video_id, video_url, status, ignored, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		video.VideoID,
		video.VideoURL,
		video.Status,
		video.Ignored,
		video.CreatedAt,
		video.UpdatedAt,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	if err != nil {
		return db.WrapError(err, "create video")
	}

	return nil
}

func (r *videoRepository) GetByVideoID(ctx context.Context, videoID string) (*models.Video, error) {
	query := fmt.Sprintf(`SELECT %s FROM videos WHERE video_id = $1`, videoColumns)

	video, err := scanVideo(r.pool.QueryRow(ctx, query, videoID))
	if err != nil {
		return nil, db.WrapError(err, "get video by id")
	}

	return video, nil
}

func (r *videoRepository) List(ctx context.Context, filters *VideoFilters) ([]*models.Video, int, error) {
	if filters == nil {
		filters = &VideoFilters{}
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "WHERE ($1::bool OR NOT ignored)"
	args := []interface{}{filters.IncludeIgnored}

	if filters.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, *filters.Status)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM videos %s`, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapError(err, "count videos")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM videos %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, videoColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, filters.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.WrapError(err, "list videos")
	}
	defer rows.Close()

	videos, err := scanVideos(rows)
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

func (r *videoRepository) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Video, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM videos
		WHERE status = $1 AND NOT ignored
		ORDER BY updated_at ASC
		LIMIT $2
	`, videoColumns)

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, db.WrapError(err, "list videos by status")
	}
	defer rows.Close()

	return scanVideos(rows)
}

func (r *videoRepository) AcquireForProcessing(ctx context.Context, videoID string, staleBefore time.Time, allowRetry bool) (bool, error) {
	// The status guard makes this the single point of mutual exclusion:
	// of N concurrent callers exactly one update matches.
	query := `
		UPDATE videos
		SET status = $1, updated_at = NOW()
		WHERE video_id = $2
		  AND (status = $3
		       OR (status = $1 AND updated_at < $4)
		       OR ($5 AND status IN ($6, $7)))
	`

	tag, err := r.pool.Exec(ctx, query,
		models.StatusProcessing,
		videoID,
		models.StatusPending,
		staleBefore,
		allowRetry,
		models.StatusFailed,
		models.StatusRateLimited,
	)
	if err != nil {
		return false, db.WrapError(err, "acquire video for processing")
	}

	return tag.RowsAffected() > 0, nil
}

func (r *videoRepository) MarkSuccess(ctx context.Context, videoID, transcript string) error {
	query := `
		UPDATE videos
		SET status = $1, transcript = $2, error_message = NULL, audio_path = NULL, updated_at = NOW()
		WHERE video_id = $3 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, models.StatusSuccess, transcript, videoID, models.StatusProcessing)
	if err != nil {
		return db.WrapError(err, "mark video success")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark video success: %w", ErrLostOwnership)
	}

	return nil
}

func (r *videoRepository) MarkFailure(ctx context.Context, videoID string, status models.Status, errorMessage string) error {
	if status != models.StatusFailed && status != models.StatusRateLimited {
		return fmt.Errorf("mark video failure: invalid terminal status %q", status)
	}

	query := `
		UPDATE videos
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE video_id = $3 AND status = $4
	`

	tag, err := r.pool.Exec(ctx, query, status, errorMessage, videoID, models.StatusProcessing)
	if err != nil {
		return db.WrapError(err, "mark video failure")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark video failure: %w", ErrLostOwnership)
	}

	return nil
}

func (r *videoRepository) UpdateMetadata(ctx context.Context, videoID string, meta *models.VideoMetadata, audioPath string) error {
	query := `
		UPDATE videos
		SET title = $1, channel_name = $2, duration_seconds = $3, view_count = $4,
		    upload_date = $5, audio_path = NULLIF($6, ''), updated_at = NOW()
		WHERE video_id = $7
	`

	tag, err := r.pool.Exec(ctx, query,
		meta.Title,
		meta.ChannelName,
		meta.DurationSeconds,
		meta.ViewCount,
		meta.UploadDate,
		audioPath,
		videoID,
	)
	if err != nil {
		return db.WrapError(err, "update video metadata")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update video metadata: %w", db.ErrNotFound)
	}

	return nil
}

func (r *videoRepository) SetIgnored(ctx context.Context, videoID string, ignored bool) error {
	query := `UPDATE videos SET ignored = $1, updated_at = NOW() WHERE video_id = $2`

	tag, err := r.pool.Exec(ctx, query, ignored, videoID)
	if err != nil {
		return db.WrapError(err, "set video ignored")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set video ignored: %w", db.ErrNotFound)
	}

	return nil
}

func (r *videoRepository) Delete(ctx context.Context, videoID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE video_id = $1`, videoID)
	if err != nil {
		return db.WrapError(err, "delete video")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete video: %w", db.ErrNotFound)
	}

	return nil
}

func (r *videoRepository) ReclaimStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	query := `
		UPDATE videos
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`

	tag, err := r.pool.Exec(ctx, query, models.StatusPending, models.StatusProcessing, staleBefore)
	if err != nil {
		return 0, db.WrapError(err, "reclaim stale videos")
	}

	return tag.RowsAffected(), nil
}

func (r *videoRepository) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM videos GROUP BY status`)
	if err != nil {
		return nil, db.WrapError(err, "count videos by status")
	}
	defer rows.Close()

	counts := make(map[models.Status]int64)
	for rows.Next() {
		var status models.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return counts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	video := &models.Video{}
	err := row.Scan(
		&video.VideoID,
		&video.VideoURL,
		&video.Status,
		&video.Transcript,
		&video.Title,
		&video.ChannelName,
		&video.DurationSeconds,
		&video.ViewCount,
		&video.UploadDate,
		&video.ErrorMessage,
		&video.AudioPath,
		&video.Ignored,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// Helper function to scan multiple videos from query results
func scanVideos(rows pgx.Rows) ([]*models.Video, error) {
	var videos []*models.Video

	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}
