// Package postgresql provides the PostgreSQL persistence implementation for
// funnels and teams.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	funnelRepo *FunnelRepository
	teamRepo   *TeamRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		funnelRepo: NewFunnelRepository(database, logger),
		teamRepo:   NewTeamRepository(database),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Funnels returns all funnels from the database.
func (p *Persistence) Funnels(ctx context.Context) ([]*models.Funnel, error) {
	return p.funnelRepo.GetAll(ctx)
}

// FunnelByID returns a funnel by its ID.
func (p *Persistence) FunnelByID(ctx context.Context, id string) (*models.Funnel, error) {
	return p.funnelRepo.GetByID(ctx, id)
}

// PublishedFunnelByID returns a funnel only when it is servable.
func (p *Persistence) PublishedFunnelByID(ctx context.Context, id string) (*models.Funnel, error) {
	return p.funnelRepo.GetPublishedByID(ctx, id)
}

// SaveFunnel upserts a funnel.
func (p *Persistence) SaveFunnel(ctx context.Context, funnel *models.Funnel) error {
	return p.funnelRepo.Save(ctx, funnel)
}

// PublishFunnel transitions a funnel to published.
func (p *Persistence) PublishFunnel(ctx context.Context, id string) error {
	return p.funnelRepo.Publish(ctx, id)
}

// ArchiveFunnel transitions a funnel to archived.
func (p *Persistence) ArchiveFunnel(ctx context.Context, id string) error {
	return p.funnelRepo.Archive(ctx, id)
}

// DeleteFunnel soft deletes a funnel by setting the deleted_at timestamp.
func (p *Persistence) DeleteFunnel(ctx context.Context, id string) error {
	return p.funnelRepo.Delete(ctx, id)
}

// TeamByID returns a team by its ID.
func (p *Persistence) TeamByID(ctx context.Context, id string) (*models.Team, error) {
	return p.teamRepo.GetByID(ctx, id)
}

// SaveTeam upserts a team.
func (p *Persistence) SaveTeam(ctx context.Context, team *models.Team) error {
	return p.teamRepo.Save(ctx, team)
}
