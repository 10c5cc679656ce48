// Package main provides the LeadRail funnel server.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/leadrail/leadrail/pkg/booking"
	"github.com/leadrail/leadrail/pkg/cmd"
	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/events"
	"github.com/leadrail/leadrail/pkg/lead"
	"github.com/leadrail/leadrail/pkg/otelhelper"
	"github.com/leadrail/leadrail/pkg/persistence"
	"github.com/leadrail/leadrail/pkg/recorder"
	"github.com/leadrail/leadrail/pkg/services"
	"github.com/leadrail/leadrail/pkg/session"
	"github.com/leadrail/leadrail/pkg/web"
)

const serviceName = "leadrail"

// Config carries the deployment settings for the server.
type Config struct {
	EventBusProvider    string
	RedisURL            string
	LeadEndpoint        string
	LeadAPIKey          string
	RecordingEndpoint   string
	RecordingAPIKey     string
	SessionTTL          time.Duration
	MetaAccessToken     string
	TikTokAccessToken   string
	LinkedInAccessToken string
}

type Server struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	config      Config
	validate    *validator.Validate
}

func NewServer(logger *slog.Logger, persistence persistence.Persistence, config Config) *Server {
	return &Server{
		logger:      logger,
		persistence: persistence,
		config:      config,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Start wires the buses, the session manager and the HTTP app, then serves
// until the listener stops.
func (s *Server) Start(ctx context.Context, port int) error {
	_, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		s.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	}

	var redisClient redis.UniversalClient
	if s.config.RedisURL != "" {
		redisClient = cmd.NewRedisClient(s.config.RedisURL)
	}

	funnelBus := cmd.NewEventBus(s.config.EventBusProvider, serviceName, events.Topic, s.logger)
	defer func() {
		if err := funnelBus.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close funnel event bus", "error", err)
		}
	}()

	bookingBus := cmd.NewEventBus(s.config.EventBusProvider, serviceName+"-booking", events.BookingTopic, s.logger)
	defer func() {
		if err := bookingBus.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Failed to close booking event bus", "error", err)
		}
	}()

	notifier := booking.NewBusNotifier(bookingBus, s.logger)

	err = notifier.Start(ctx)
	if err != nil {
		return err
	}

	sessions := session.NewManager(session.Config{
		LeadClient: lead.NewHTTPClient(s.config.LeadEndpoint, s.config.LeadAPIKey, s.logger),
		IDStore:    cmd.NewRequestIDStore(redisClient, s.logger),
		Publisher:  funnelBus,
		Notifier:   notifier,
		Providers: cmd.NewProviderFactory(cmd.AnalyticsTokens{
			Meta:     s.config.MetaAccessToken,
			TikTok:   s.config.TikTokAccessToken,
			LinkedIn: s.config.LinkedInAccessToken,
		}),
		Windows: cmd.NewWindowFactory(redisClient, s.logger),
		IdleTTL: s.config.SessionTTL,
		Logger:  s.logger,
	})

	if s.config.RecordingEndpoint != "" {
		rec := recorder.NewRecorder(funnelBus, s.config.RecordingEndpoint, s.config.RecordingAPIKey, s.logger)

		err = rec.Start(ctx)
		if err != nil {
			return err
		}
	}

	scheduler := cron.New()

	_, err = scheduler.AddFunc("@every 1m", func() {
		if expired := sessions.Sweep(); expired > 0 {
			s.logger.Info("Swept idle sessions", "count", expired)
		}
	})
	if err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	return s.App(sessions, bookingBus).Listen(":" + strconv.Itoa(port))
}

// App assembles the fiber application.
func (s *Server) App(sessions *session.Manager, bookingBus eventbus.EventPublisher) *fiber.App {
	funnelService := services.NewFunnel(s.persistence)
	publishingService := services.NewPublishing(s.persistence, s.logger)

	handlers := web.NewAPIHandlers(funnelService, publishingService, sessions, bookingBus, s.validate, s.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("LeadRail")
	})

	handlers.RegisterRoutes(app)

	return app
}
