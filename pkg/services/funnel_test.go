package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
	"github.com/leadrail/leadrail/pkg/persistence/file"
	"github.com/leadrail/leadrail/pkg/services"
)

func setupService(t *testing.T) (*services.Funnel, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return services.NewFunnel(p), p
}

func validFunnel() *models.Funnel {
	return &models.Funnel{
		TeamID: "team-1",
		Name:   "Demo Funnel",
		Slug:   "demo-funnel",
		Steps: []*models.Step{
			{ID: "s1", OrderIndex: 0, Type: models.StepTypeWelcome},
			{ID: "s2", OrderIndex: 1, Type: models.StepTypeThankYou},
		},
	}
}

func TestCreateAssignsIDAndDraftStatus(t *testing.T) {
	service, _ := setupService(t)

	created, err := service.Create(context.Background(), validFunnel())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.FunnelStatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateValidatesFunnel(t *testing.T) {
	service, _ := setupService(t)

	funnel := validFunnel()
	funnel.Name = "ab" // below min=3

	_, err := service.Create(context.Background(), funnel)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestUpdatePublishedFunnelRejected(t *testing.T) {
	service, p := setupService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validFunnel())
	require.NoError(t, err)
	require.NoError(t, p.PublishFunnel(ctx, created.ID))

	created.Name = "New Name"

	_, err = service.Update(ctx, created.ID, created)
	require.Error(t, err)
	assert.True(t, services.IsConflictError(err))
}

func TestFetchPublishedOnlyServesPublished(t *testing.T) {
	service, p := setupService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validFunnel())
	require.NoError(t, err)

	_, err = service.FetchPublished(ctx, created.ID)
	assert.True(t, persistence.IsPublishedFunnelNotFound(err))

	require.NoError(t, p.PublishFunnel(ctx, created.ID))

	published, err := service.FetchPublished(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, published.ID)
}

func TestTeamForFunnelFallsBackWhenMissing(t *testing.T) {
	service, p := setupService(t)
	ctx := context.Background()

	funnel := validFunnel()
	funnel.TeamID = "team-missing"

	team := service.TeamForFunnel(ctx, funnel)
	require.NotNil(t, team)
	assert.Equal(t, "team-missing", team.ID)
	assert.Empty(t, team.PrivacyPolicyURL)

	require.NoError(t, p.SaveTeam(ctx, &models.Team{
		ID: "team-1", Name: "Acme", PrivacyPolicyURL: "https://acme.test/privacy",
	}))

	funnel.TeamID = "team-1"
	team = service.TeamForFunnel(ctx, funnel)
	assert.Equal(t, "https://acme.test/privacy", team.PrivacyPolicyURL)
}

func TestDeleteMissingFunnel(t *testing.T) {
	service, _ := setupService(t)

	err := service.Delete(context.Background(), "missing")
	assert.True(t, persistence.IsFunnelNotFound(err))
}
