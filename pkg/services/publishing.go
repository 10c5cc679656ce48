// Package services provides funnel publishing functionality.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
	"github.com/leadrail/leadrail/pkg/registry"
)

// Publishing handles funnel publishing operations.
type Publishing struct {
	persistence persistence.Persistence
	registry    *registry.Registry
}

// NewPublishing creates a new funnel publishing service.
func NewPublishing(persistence persistence.Persistence, logger *slog.Logger) *Publishing {
	return &Publishing{
		persistence: persistence,
		registry:    registry.NewDefaultRegistry(logger),
	}
}

// PublishFunnel validates a funnel and transitions it to published.
func (p *Publishing) PublishFunnel(ctx context.Context, funnelID string) (*models.Funnel, error) {
	funnel, err := p.persistence.FunnelByID(ctx, funnelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get funnel: %w", err)
	}

	if err := p.validateForPublishing(funnel); err != nil {
		return nil, fmt.Errorf("funnel validation failed: %w", err)
	}

	if err := p.persistence.PublishFunnel(ctx, funnelID); err != nil {
		return nil, fmt.Errorf("failed to publish funnel: %w", err)
	}

	return p.persistence.FunnelByID(ctx, funnelID)
}

// ArchiveFunnel takes a funnel out of service.
func (p *Publishing) ArchiveFunnel(ctx context.Context, funnelID string) error {
	err := p.persistence.ArchiveFunnel(ctx, funnelID)
	if err != nil {
		return fmt.Errorf("failed to archive funnel: %w", err)
	}

	return nil
}

// validateForPublishing ensures a funnel is ready to serve visitors.
func (p *Publishing) validateForPublishing(funnel *models.Funnel) error {
	if funnel == nil {
		return ErrFunnelNil
	}

	if funnel.Name == "" {
		return ErrFunnelNameRequired
	}

	if funnel.Status == models.FunnelStatusArchived {
		return ErrCannotPublishArchived
	}

	if len(funnel.VisibleSteps()) == 0 {
		return ErrStepsRequired
	}

	if err := p.registry.ValidateFunnel(funnel); err != nil {
		return NewValidationError("Publish", "INVALID_STEP_CONTENT", err.Error(), ErrInvalidRequest)
	}

	return nil
}
