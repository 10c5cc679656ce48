package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadrail/leadrail/pkg/persistence"
	"github.com/leadrail/leadrail/pkg/persistence/file"
	"github.com/leadrail/leadrail/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// Postgres URLs get the SQL backend, anything else falls back to file storage
// rooted at the URL path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return scheme
}
