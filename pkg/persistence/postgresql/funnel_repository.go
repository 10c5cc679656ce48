package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
)

// FunnelRepository handles funnel-related database operations. Steps and
// settings are stored as JSONB documents: the runtime always loads a funnel
// whole and never queries inside a step.
type FunnelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFunnelRepository creates a new funnel repository.
func NewFunnelRepository(db *sql.DB, logger *slog.Logger) *FunnelRepository {
	return &FunnelRepository{db: db, logger: logger}
}

const funnelColumns = `id, team_id, name, slug, status, steps, settings, metadata,
	created_at, updated_at, published_at, deleted_at`

// GetAll returns all funnels that are not soft deleted.
func (r *FunnelRepository) GetAll(ctx context.Context) ([]*models.Funnel, error) {
	query := `SELECT ` + funnelColumns + ` FROM funnels WHERE deleted_at IS NULL ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query funnels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var funnels []*models.Funnel

	for rows.Next() {
		funnel, err := scanFunnel(rows)
		if err != nil {
			return nil, err
		}

		funnels = append(funnels, funnel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate funnels: %w", err)
	}

	return funnels, nil
}

// GetByID retrieves a funnel by its ID.
func (r *FunnelRepository) GetByID(ctx context.Context, id string) (*models.Funnel, error) {
	query := `SELECT ` + funnelColumns + ` FROM funnels WHERE id = $1 AND deleted_at IS NULL`

	funnel, err := scanFunnel(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewFunnelError("GetByID", id, persistence.ErrFunnelNotFound)
	}

	if err != nil {
		return nil, err
	}

	return funnel, nil
}

// GetPublishedByID retrieves a funnel only when its status is published.
func (r *FunnelRepository) GetPublishedByID(ctx context.Context, id string) (*models.Funnel, error) {
	query := `SELECT ` + funnelColumns + ` FROM funnels
		WHERE id = $1 AND status = $2 AND deleted_at IS NULL`

	funnel, err := scanFunnel(r.db.QueryRowContext(ctx, query, id, models.FunnelStatusPublished))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewFunnelError("GetPublishedByID", id, persistence.ErrPublishedFunnelNotFound)
	}

	if err != nil {
		return nil, err
	}

	return funnel, nil
}

// Save upserts a funnel.
func (r *FunnelRepository) Save(ctx context.Context, funnel *models.Funnel) error {
	now := time.Now().UTC()
	if funnel.CreatedAt.IsZero() {
		funnel.CreatedAt = now
	}

	funnel.UpdatedAt = now

	steps, err := json.Marshal(funnel.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps for funnel %s: %w", funnel.ID, err)
	}

	settings, err := json.Marshal(funnel.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings for funnel %s: %w", funnel.ID, err)
	}

	var metadata []byte

	if funnel.Metadata != nil {
		metadata, err = json.Marshal(funnel.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for funnel %s: %w", funnel.ID, err)
		}
	}

	query := `
		INSERT INTO funnels (id, team_id, name, slug, status, steps, settings, metadata,
			created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			team_id = EXCLUDED.team_id,
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			status = EXCLUDED.status,
			steps = EXCLUDED.steps,
			settings = EXCLUDED.settings,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`

	_, err = r.db.ExecContext(ctx, query,
		funnel.ID, funnel.TeamID, funnel.Name, funnel.Slug, funnel.Status,
		steps, settings, metadata,
		funnel.CreatedAt, funnel.UpdatedAt, funnel.PublishedAt,
	)
	if err != nil {
		return persistence.NewFunnelError("Save", funnel.ID, err)
	}

	return nil
}

// Publish transitions a funnel to published, stamping published_at only on the
// first publish. Archived funnels are rejected.
func (r *FunnelRepository) Publish(ctx context.Context, id string) error {
	query := `
		UPDATE funnels
		SET status = $2,
			published_at = COALESCE(published_at, NOW()),
			updated_at = NOW()
		WHERE id = $1 AND status != $3 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, models.FunnelStatusPublished, models.FunnelStatusArchived)
	if err != nil {
		return persistence.NewFunnelError("Publish", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFunnelError("Publish", id, err)
	}

	if affected == 0 {
		return persistence.NewFunnelError("Publish", id, persistence.ErrInvalidFunnelStatus)
	}

	return nil
}

// Archive transitions a funnel to archived.
func (r *FunnelRepository) Archive(ctx context.Context, id string) error {
	query := `UPDATE funnels SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, models.FunnelStatusArchived)
	if err != nil {
		return persistence.NewFunnelError("Archive", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewFunnelError("Archive", id, err)
	}

	if affected == 0 {
		return persistence.NewFunnelError("Archive", id, persistence.ErrFunnelNotFound)
	}

	return nil
}

// Delete soft deletes a funnel. Deleting a missing funnel is a no-op.
func (r *FunnelRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE funnels SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return persistence.NewFunnelError("Delete", id, err)
	}

	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanFunnel(row scanner) (*models.Funnel, error) {
	var (
		funnel   models.Funnel
		steps    []byte
		settings []byte
		metadata []byte
	)

	err := row.Scan(
		&funnel.ID, &funnel.TeamID, &funnel.Name, &funnel.Slug, &funnel.Status,
		&steps, &settings, &metadata,
		&funnel.CreatedAt, &funnel.UpdatedAt, &funnel.PublishedAt, &funnel.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan funnel: %w", err)
	}

	err = json.Unmarshal(steps, &funnel.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps for funnel %s: %w", funnel.ID, err)
	}

	err = json.Unmarshal(settings, &funnel.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings for funnel %s: %w", funnel.ID, err)
	}

	if len(metadata) > 0 {
		err = json.Unmarshal(metadata, &funnel.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for funnel %s: %w", funnel.ID, err)
		}
	}

	return &funnel, nil
}
