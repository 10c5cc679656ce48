package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
	"github.com/leadrail/leadrail/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"funnels", "teams", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("leadrail_test"),
			postgres.WithUsername("leadrail"),
			postgres.WithPassword("leadrail"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'funnels')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "funnels table should exist")

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'teams')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "teams table should exist")
}

func createTestFunnel(t *testing.T) *models.Funnel {
	t.Helper()

	return &models.Funnel{
		ID:     uuid.New().String(),
		TeamID: "team-1",
		Name:   "Integration Test Funnel",
		Slug:   "integration-test-funnel",
		Status: models.FunnelStatusDraft,
		Steps: []*models.Step{
			{ID: "s1", OrderIndex: 0, Type: models.StepTypeWelcome},
			{
				ID: "s2", OrderIndex: 1, Type: models.StepTypeEmailCapture,
				Content: map[string]any{"privacy_link": "https://example.com/privacy", "is_required": true},
			},
			{ID: "s3", OrderIndex: 2, Type: models.StepTypeThankYou},
		},
		Settings: models.FunnelSettings{
			Tracking: models.TrackingSettings{
				MetaPixelID: "pixel-1",
				Currency:    "EUR",
			},
			ShowProgressBar: true,
		},
	}
}

func TestFunnelLifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	funnel := createTestFunnel(t)

	require.NoError(t, p.SaveFunnel(ctx, funnel))

	loaded, err := p.FunnelByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, funnel.Name, loaded.Name)
	assert.Len(t, loaded.Steps, 3)
	assert.Equal(t, "EUR", loaded.Settings.Tracking.Currency)
	assert.True(t, loaded.Settings.ShowProgressBar)

	// Drafts are not servable.
	_, err = p.PublishedFunnelByID(ctx, funnel.ID)
	assert.True(t, persistence.IsPublishedFunnelNotFound(err))

	require.NoError(t, p.PublishFunnel(ctx, funnel.ID))

	published, err := p.PublishedFunnelByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FunnelStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	firstPublishedAt := *published.PublishedAt

	// Re-publishing must not move published_at.
	require.NoError(t, p.PublishFunnel(ctx, funnel.ID))

	published, err = p.PublishedFunnelByID(ctx, funnel.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, firstPublishedAt, *published.PublishedAt, time.Millisecond)

	require.NoError(t, p.ArchiveFunnel(ctx, funnel.ID))

	_, err = p.PublishedFunnelByID(ctx, funnel.ID)
	assert.True(t, persistence.IsPublishedFunnelNotFound(err))

	// Archived funnels cannot be re-published.
	err = p.PublishFunnel(ctx, funnel.ID)
	require.Error(t, err)
}

func TestFunnelSoftDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	funnel := createTestFunnel(t)
	require.NoError(t, p.SaveFunnel(ctx, funnel))
	require.NoError(t, p.DeleteFunnel(ctx, funnel.ID))

	_, err := p.FunnelByID(ctx, funnel.ID)
	require.Error(t, err)

	funnels, err := p.Funnels(ctx)
	require.NoError(t, err)
	assert.Empty(t, funnels)

	// Deleting again is a no-op.
	require.NoError(t, p.DeleteFunnel(ctx, funnel.ID))
}

func TestTeamRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	team := &models.Team{ID: "team-1", Name: "Acme", PrivacyPolicyURL: "https://acme.test/privacy"}
	require.NoError(t, p.SaveTeam(ctx, team))

	loaded, err := p.TeamByID(ctx, "team-1")
	require.NoError(t, err)
	assert.Equal(t, team.PrivacyPolicyURL, loaded.PrivacyPolicyURL)

	team.PrivacyPolicyURL = "https://acme.test/privacy-v2"
	require.NoError(t, p.SaveTeam(ctx, team))

	loaded, err = p.TeamByID(ctx, "team-1")
	require.NoError(t, err)
	assert.Equal(t, "https://acme.test/privacy-v2", loaded.PrivacyPolicyURL)
}
