// Package persistence provides the data storage abstraction layer for funnels
// and teams.
package persistence

import (
	"context"

	"github.com/leadrail/leadrail/pkg/models"
)

type Persistence interface {
	Funnels(ctx context.Context) ([]*models.Funnel, error)
	SaveFunnel(ctx context.Context, funnel *models.Funnel) error
	FunnelByID(ctx context.Context, id string) (*models.Funnel, error)

	// PublishedFunnelByID returns the funnel only when its status is
	// published; anything else is ErrPublishedFunnelNotFound. This is the
	// lookup the public runtime uses: drafts and archived funnels are never
	// servable.
	PublishedFunnelByID(ctx context.Context, id string) (*models.Funnel, error)

	PublishFunnel(ctx context.Context, id string) error
	ArchiveFunnel(ctx context.Context, id string) error
	DeleteFunnel(ctx context.Context, id string) error

	TeamByID(ctx context.Context, id string) (*models.Team, error)
	SaveTeam(ctx context.Context, team *models.Team) error

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
