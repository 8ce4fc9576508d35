package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
)

// PromptRepository defines operations for managing prompt templates.
type PromptRepository interface {
	Create(ctx context.Context, prompt *models.Prompt) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	GetByName(ctx context.Context, name string) (*models.Prompt, error)
	List(ctx context.Context) ([]*models.Prompt, error)
	Update(ctx context.Context, prompt *models.Prompt) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type promptRepository struct {
	pool *pgxpool.Pool
}

// NewPromptRepository creates a new PromptRepository.
func NewPromptRepository(pool *pgxpool.Pool) PromptRepository {
	return &promptRepository{pool: pool}
}

func (r *promptRepository) Create(ctx context.Context, prompt *models.Prompt) error {
	query := `
		INSERT INTO prompts (id, name, template, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		prompt.ID,
		prompt.Name,
		prompt.Template,
		prompt.CreatedAt,
		prompt.UpdatedAt,
	)
	if err != nil {
		return db.WrapError(err, "create prompt")
	}

	return nil
}

func (r *promptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	query := `SELECT id, name, template, created_at, updated_at FROM prompts WHERE id = $1`

	prompt := &models.Prompt{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&prompt.ID,
		&prompt.Name,
		&prompt.Template,
		&prompt.CreatedAt,
		&prompt.UpdatedAt,
	)
	if err != nil {
		return nil, db.WrapError(err, "get prompt by id")
	}

	return prompt, nil
}

func (r *promptRepository) GetByName(ctx context.Context, name string) (*models.Prompt, error) {
	query := `SELECT id, name, template, created_at, updated_at FROM prompts WHERE name = $1`

	prompt := &models.Prompt{}
	err := r.pool.QueryRow(ctx, query, name).Scan(
		&prompt.ID,
		&prompt.Name,
		&prompt.Template,
		&prompt.CreatedAt,
		&prompt.UpdatedAt,
	)
	if err != nil {
		return nil, db.WrapError(err, "get prompt by name")
	}

	return prompt, nil
}

func (r *promptRepository) List(ctx context.Context) ([]*models.Prompt, error) {
	query := `SELECT id, name, template, created_at, updated_at FROM prompts ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, db.WrapError(err, "list prompts")
	}
	defer rows.Close()

	var prompts []*models.Prompt
	for rows.Next() {
		prompt := &models.Prompt{}
		err := rows.Scan(
			&prompt.ID,
			&prompt.Name,
			&prompt.Template,
			&prompt.CreatedAt,
			&prompt.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", err)
	}

	return prompts, nil
}

func (r *promptRepository) Update(ctx context.Context, prompt *models.Prompt) error {
	query := `
		UPDATE prompts
		SET name = $1, template = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query, prompt.Name, prompt.Template, prompt.ID).Scan(&prompt.UpdatedAt)
	if err != nil {
		return db.WrapError(err, "update prompt")
	}

	return nil
}

func (r *promptRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return db.WrapError(err, "delete prompt")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete prompt: %w", db.ErrNotFound)
	}

	return nil
}
