// Package file provides a file-system persistence implementation, used in
// development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
)

// Persistence stores each funnel and team as one JSON document under root.
type Persistence struct {
	root string
}

// NewPersistence creates a file-backed persistence layer rooted at root.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: root}
}

// Funnels returns all funnels found under the root.
func (p *Persistence) Funnels(_ context.Context) ([]*models.Funnel, error) {
	root := os.DirFS(path.Join(p.root, "funnels"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list funnel files: %w", err)
	}

	funnels := make([]*models.Funnel, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		funnel, err := p.readFunnel(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if funnel != nil {
			funnels = append(funnels, funnel)
		}
	}

	return funnels, nil
}

// FunnelByID retrieves a funnel by its ID.
func (p *Persistence) FunnelByID(_ context.Context, id string) (*models.Funnel, error) {
	funnel, err := p.readFunnel(id)
	if err != nil {
		return nil, err
	}

	if funnel == nil {
		return nil, persistence.NewFunnelError("FunnelByID", id, persistence.ErrFunnelNotFound)
	}

	return funnel, nil
}

// PublishedFunnelByID retrieves a funnel only when it is servable.
func (p *Persistence) PublishedFunnelByID(_ context.Context, id string) (*models.Funnel, error) {
	funnel, err := p.readFunnel(id)
	if err != nil {
		return nil, err
	}

	if funnel == nil || funnel.Status != models.FunnelStatusPublished {
		return nil, persistence.NewFunnelError("PublishedFunnelByID", id, persistence.ErrPublishedFunnelNotFound)
	}

	return funnel, nil
}

// SaveFunnel writes the funnel to disk, stamping timestamps.
func (p *Persistence) SaveFunnel(_ context.Context, funnel *models.Funnel) error {
	err := os.MkdirAll(path.Join(p.root, "funnels"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create funnels directory: %w", err)
	}

	now := time.Now().UTC()
	if funnel.CreatedAt.IsZero() {
		funnel.CreatedAt = now
	}

	funnel.UpdatedAt = now

	data, err := json.MarshalIndent(funnel, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal funnel %s: %w", funnel.ID, err)
	}

	return os.WriteFile(p.funnelPath(funnel.ID), data, 0600)
}

// PublishFunnel transitions a funnel to published and stamps published_at once.
func (p *Persistence) PublishFunnel(ctx context.Context, id string) error {
	funnel, err := p.FunnelByID(ctx, id)
	if err != nil {
		return err
	}

	if funnel.Status == models.FunnelStatusArchived {
		return persistence.NewFunnelError("Publish", id, persistence.ErrInvalidFunnelStatus)
	}

	funnel.Status = models.FunnelStatusPublished

	if funnel.PublishedAt == nil {
		now := time.Now().UTC()
		funnel.PublishedAt = &now
	}

	return p.SaveFunnel(ctx, funnel)
}

// ArchiveFunnel transitions a funnel to archived, taking it out of service.
func (p *Persistence) ArchiveFunnel(ctx context.Context, id string) error {
	funnel, err := p.FunnelByID(ctx, id)
	if err != nil {
		return err
	}

	funnel.Status = models.FunnelStatusArchived

	return p.SaveFunnel(ctx, funnel)
}

// DeleteFunnel removes a funnel by its ID. Deleting a missing funnel is a no-op.
func (p *Persistence) DeleteFunnel(_ context.Context, id string) error {
	err := os.Remove(p.funnelPath(id))

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete funnel %s: %w", id, err)
	}

	return nil
}

// TeamByID retrieves a team by its ID.
func (p *Persistence) TeamByID(_ context.Context, id string) (*models.Team, error) {
	body, err := os.ReadFile(p.teamPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewTeamError("TeamByID", id, persistence.ErrTeamNotFound)
		}

		return nil, fmt.Errorf("failed to fetch team %s: %w", id, err)
	}

	var team models.Team

	err = json.Unmarshal(body, &team)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal team %s: %w", id, err)
	}

	return &team, nil
}

// SaveTeam writes the team to disk.
func (p *Persistence) SaveTeam(_ context.Context, team *models.Team) error {
	err := os.MkdirAll(path.Join(p.root, "teams"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create teams directory: %w", err)
	}

	data, err := json.MarshalIndent(team, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal team %s: %w", team.ID, err)
	}

	return os.WriteFile(p.teamPath(team.ID), data, 0600)
}

// HealthCheck verifies the root directory is usable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(p.root, 0750)
	if err != nil {
		return fmt.Errorf("persistence root not writable: %w", err)
	}

	return nil
}

// Close is a no-op for the file backend.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) funnelPath(id string) string {
	return filepath.Clean(path.Join(p.root, "funnels", id+".json"))
}

func (p *Persistence) teamPath(id string) string {
	return filepath.Clean(path.Join(p.root, "teams", id+".json"))
}

// readFunnel loads one funnel document, nil when the file does not exist.
func (p *Persistence) readFunnel(id string) (*models.Funnel, error) {
	body, err := os.ReadFile(p.funnelPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch funnel %s: %w", id, err)
	}

	var funnel models.Funnel

	err = json.Unmarshal(body, &funnel)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal funnel %s: %w", id, err)
	}

	return &funnel, nil
}
