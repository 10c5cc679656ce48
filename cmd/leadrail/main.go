package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/leadrail/leadrail/pkg/cmd"
	"github.com/leadrail/leadrail/pkg/log"
	"github.com/leadrail/leadrail/pkg/session"
)

const defaultPort = 9081

func main() {
	logger := log.WithModule("leadrail")

	command := &cli.Command{
		Name:                  "leadrail",
		Usage:                 "Serve published funnels and their capture runtime",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for funnel persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (memory, kafka)",
				Value:   "memory",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for shared dedup and request-id state",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "lead-endpoint",
				Usage:    "Lead upsert endpoint URL",
				Required: true,
				Sources:  cli.EnvVars("LEAD_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "lead-api-key",
				Usage:   "API key for the lead upsert endpoint",
				Sources: cli.EnvVars("LEAD_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "recording-endpoint",
				Usage:   "Event recording endpoint URL, empty disables recording",
				Sources: cli.EnvVars("RECORDING_ENDPOINT"),
			},
			&cli.StringFlag{
				Name:    "recording-api-key",
				Usage:   "API key for the event recording endpoint",
				Sources: cli.EnvVars("RECORDING_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "meta-access-token",
				Usage:   "Meta conversions API access token",
				Sources: cli.EnvVars("META_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "tiktok-access-token",
				Usage:   "TikTok events API access token",
				Sources: cli.EnvVars("TIKTOK_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "linkedin-access-token",
				Usage:   "LinkedIn conversions API access token",
				Sources: cli.EnvVars("LINKEDIN_ACCESS_TOKEN"),
			},
			&cli.DurationFlag{
				Name:    "session-ttl",
				Usage:   "How long an idle session is kept alive",
				Value:   session.DefaultIdleTTL,
				Sources: cli.EnvVars("SESSION_TTL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger.InfoContext(ctx, "Initializing LeadRail server")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			server := NewServer(logger, persistence, Config{
				EventBusProvider:    command.String("event-bus"),
				RedisURL:            command.String("redis-url"),
				LeadEndpoint:        command.String("lead-endpoint"),
				LeadAPIKey:          command.String("lead-api-key"),
				RecordingEndpoint:   command.String("recording-endpoint"),
				RecordingAPIKey:     command.String("recording-api-key"),
				SessionTTL:          command.Duration("session-ttl"),
				MetaAccessToken:     command.String("meta-access-token"),
				TikTokAccessToken:   command.String("tiktok-access-token"),
				LinkedInAccessToken: command.String("linkedin-access-token"),
			})

			err := server.Start(ctx, command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Server stopped with error", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
