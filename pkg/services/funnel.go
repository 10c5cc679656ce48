package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
)

var (
	// ErrFunnelNotFound is returned when a funnel is not found.
	ErrFunnelNotFound = persistence.ErrFunnelNotFound

	// ErrPublishedFunnelNotFound is returned when no servable funnel exists.
	ErrPublishedFunnelNotFound = persistence.ErrPublishedFunnelNotFound
)

// Funnel is the funnel management service used by the builder-facing API.
type Funnel struct {
	persistence persistence.Persistence
	validate    *validator.Validate
}

// NewFunnel creates a new funnel service.
func NewFunnel(persistence persistence.Persistence) *Funnel {
	return &Funnel{
		persistence: persistence,
		validate:    validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Funnel) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves all funnels.
func (f *Funnel) List(ctx context.Context) ([]*models.Funnel, error) {
	funnels, err := f.persistence.Funnels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}

	return funnels, nil
}

// FetchByID retrieves a funnel by its ID.
func (f *Funnel) FetchByID(ctx context.Context, id string) (*models.Funnel, error) {
	return f.persistence.FunnelByID(ctx, id)
}

// FetchPublished retrieves a funnel only when it is servable. This is the
// lookup backing the public session endpoints.
func (f *Funnel) FetchPublished(ctx context.Context, id string) (*models.Funnel, error) {
	return f.persistence.PublishedFunnelByID(ctx, id)
}

// TeamForFunnel resolves the owning team. A missing team is tolerated: the
// runtime only loses the team-level consent fallback.
func (f *Funnel) TeamForFunnel(ctx context.Context, funnel *models.Funnel) *models.Team {
	team, err := f.persistence.TeamByID(ctx, funnel.TeamID)
	if err != nil {
		return &models.Team{ID: funnel.TeamID}
	}

	return team
}

// Create adds a new funnel in draft status.
func (f *Funnel) Create(ctx context.Context, funnel *models.Funnel) (*models.Funnel, error) {
	now := time.Now().UTC()
	funnel.ID = uuid.New().String()
	funnel.CreatedAt = now
	funnel.UpdatedAt = now

	if funnel.Status == "" {
		funnel.Status = models.FunnelStatusDraft
	}

	err := f.validate.Struct(funnel)
	if err != nil {
		return nil, NewValidationError("Create", "INVALID_FUNNEL", err.Error(), ErrInvalidRequest)
	}

	err = f.persistence.SaveFunnel(ctx, funnel)
	if err != nil {
		return nil, fmt.Errorf("failed to create funnel: %w", err)
	}

	return funnel, nil
}

// Update modifies an existing funnel. Published funnels are immutable; they
// must be archived or superseded, never edited in place.
func (f *Funnel) Update(ctx context.Context, funnelID string, funnel *models.Funnel) (*models.Funnel, error) {
	existing, err := f.persistence.FunnelByID(ctx, funnelID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.FunnelStatusPublished {
		return nil, NewValidationError("Update", "FUNNEL_PUBLISHED",
			"published funnels cannot be edited", ErrCannotModifyPublished)
	}

	funnel.ID = funnelID
	funnel.CreatedAt = existing.CreatedAt
	funnel.UpdatedAt = time.Now().UTC()

	err = f.validate.Struct(funnel)
	if err != nil {
		return nil, NewValidationError("Update", "INVALID_FUNNEL", err.Error(), ErrInvalidRequest)
	}

	err = f.persistence.SaveFunnel(ctx, funnel)
	if err != nil {
		return nil, fmt.Errorf("failed to update funnel: %w", err)
	}

	return funnel, nil
}

// Delete removes a funnel by its ID.
func (f *Funnel) Delete(ctx context.Context, funnelID string) error {
	_, err := f.persistence.FunnelByID(ctx, funnelID)
	if err != nil {
		return err
	}

	err = f.persistence.DeleteFunnel(ctx, funnelID)
	if err != nil {
		return fmt.Errorf("failed to delete funnel: %w", err)
	}

	return nil
}
