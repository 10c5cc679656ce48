package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
)

// TeamRepository handles team-related database operations.
type TeamRepository struct {
	db *sql.DB
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *sql.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// GetByID retrieves a team by its ID.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	query := `SELECT id, name, privacy_policy_url FROM teams WHERE id = $1`

	var team models.Team

	err := r.db.QueryRowContext(ctx, query, id).Scan(&team.ID, &team.Name, &team.PrivacyPolicyURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewTeamError("GetByID", id, persistence.ErrTeamNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan team %s: %w", id, err)
	}

	return &team, nil
}

// Save upserts a team.
func (r *TeamRepository) Save(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (id, name, privacy_policy_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			privacy_policy_url = EXCLUDED.privacy_policy_url,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, team.ID, team.Name, team.PrivacyPolicyURL)
	if err != nil {
		return persistence.NewTeamError("Save", team.ID, err)
	}

	return nil
}
