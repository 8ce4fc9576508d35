package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
)

// GeneratedContentRepository defines operations for AI-generated artifacts.
type GeneratedContentRepository interface {
	Create(ctx context.Context, content *models.GeneratedContent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GeneratedContent, error)
	ListByVideoID(ctx context.Context, videoID string) ([]*models.GeneratedContent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type generatedContentRepository struct {
	pool *pgxpool.Pool
}

// NewGeneratedContentRepository creates a new GeneratedContentRepository.
func NewGeneratedContentRepository(pool *pgxpool.Pool) GeneratedContentRepository {
	return &generatedContentRepository{pool: pool}
}

const generatedContentColumns = `id, video_id, prompt_id, model, content,
	prompt_tokens, completion_tokens, total_tokens, created_at`

func (r *generatedContentRepository) Create(ctx context.Context, content *models.GeneratedContent) error {
	query := `
		INSERT INTO generated_content
			(id, video_id, prompt_id, model, content, prompt_tokens, completion_tokens, total_tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		content.ID,
		content.VideoID,
		content.PromptID,
		content.Model,
		content.Content,
		content.PromptTokens,
		content.CompletionTokens,
		content.TotalTokens,
		content.CreatedAt,
	)
	if err != nil {
		return db.WrapError(err, "create generated content")
	}

	return nil
}

func (r *generatedContentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GeneratedContent, error) {
	query := fmt.Sprintf(`SELECT %s FROM generated_content WHERE id = $1`, generatedContentColumns)

	content, err := scanGeneratedContent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, db.WrapError(err, "get generated content by id")
	}

	return content, nil
}

func (r *generatedContentRepository) ListByVideoID(ctx context.Context, videoID string) ([]*models.GeneratedContent, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM generated_content
		WHERE video_id = $1
		ORDER BY created_at DESC
	`, generatedContentColumns)

	rows, err := r.pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, db.WrapError(err, "list generated content by video id")
	}
	defer rows.Close()

	return scanGeneratedContents(rows)
}

func (r *generatedContentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM generated_content WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "delete generated content")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete generated content: %w", db.ErrNotFound)
	}

	return nil
}

func scanGeneratedContent(row rowScanner) (*models.GeneratedContent, error) {
	content := &models.GeneratedContent{}
	err := row.Scan(
		&content.ID,
		&content.VideoID,
		&content.PromptID,
		&content.Model,
		&content.Content,
		&content.PromptTokens,
		&content.CompletionTokens,
		&content.TotalTokens,
		&content.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return content, nil
}

func scanGeneratedContents(rows pgx.Rows) ([]*models.GeneratedContent, error) {
	var contents []*models.GeneratedContent

	for rows.Next() {
		content, err := scanGeneratedContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generated content: %w", err)
		}
		contents = append(contents, content)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generated content: %w", err)
	}

	return contents, nil
}
