// Package web provides the HTTP surface: builder-facing funnel management and
// the public session endpoints visitors drive.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/leadrail/leadrail/pkg/booking"
	"github.com/leadrail/leadrail/pkg/eventbus"
	"github.com/leadrail/leadrail/pkg/events"
	"github.com/leadrail/leadrail/pkg/models"
	"github.com/leadrail/leadrail/pkg/persistence"
	"github.com/leadrail/leadrail/pkg/services"
	"github.com/leadrail/leadrail/pkg/session"
)

type APIHandlers struct {
	funnelService     *services.Funnel
	publishingService *services.Publishing
	sessions          *session.Manager
	bookingBus        eventbus.EventPublisher
	validator         *validator.Validate
	logger            *slog.Logger
}

func NewAPIHandlers(
	funnelService *services.Funnel,
	publishingService *services.Publishing,
	sessions *session.Manager,
	bookingBus eventbus.EventPublisher,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		funnelService:     funnelService,
		publishingService: publishingService,
		sessions:          sessions,
		bookingBus:        bookingBus,
		validator:         validator,
		logger:            logger.With("module", "web"),
	}
}

// RegisterRoutes wires every endpoint onto the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	f := app.Group("/funnels")
	f.Get("/", h.GetFunnels)
	f.Post("/", h.CreateFunnel)
	f.Get("/:id", h.GetFunnel)
	f.Patch("/:id", h.UpdateFunnel)
	f.Delete("/:id", h.DeleteFunnel)
	f.Post("/:id/publish", h.PublishFunnel)
	f.Post("/:id/archive", h.ArchiveFunnel)

	f.Get("/:id/published", h.GetPublishedFunnel)
	f.Post("/:id/sessions", h.StartSession)

	s := app.Group("/sessions")
	s.Post("/:id/advance", h.Advance)

	app.Post("/webhooks/scheduling", h.SchedulingWebhook)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetFunnels(c fiber.Ctx) error {
	funnels, err := h.funnelService.List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"funnels":     funnels,
		"total_count": len(funnels),
	})
}

func (h *APIHandlers) GetFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	funnel, err := h.funnelService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsFunnelNotFound(err) {
			return notFound(c, "Funnel not found")
		}

		return internalError(c, err)
	}

	return c.JSON(funnel)
}

func (h *APIHandlers) CreateFunnel(c fiber.Ctx) error {
	var req CreateFunnelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	funnel := &models.Funnel{
		TeamID:   req.TeamID,
		Name:     req.Name,
		Slug:     req.Slug,
		Steps:    req.Steps,
		Settings: req.Settings,
		Metadata: req.Metadata,
	}

	created, err := h.funnelService.Create(c.Context(), funnel)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	var req UpdateFunnelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.funnelService.FetchByID(c.Context(), id)
	if err != nil {
		if persistence.IsFunnelNotFound(err) {
			return notFound(c, "Funnel not found")
		}

		return internalError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Slug != nil {
		existing.Slug = *req.Slug
	}

	if req.Steps != nil {
		existing.Steps = req.Steps
	}

	if req.Settings != nil {
		existing.Settings = *req.Settings
	}

	if req.Metadata != nil {
		existing.Metadata = req.Metadata
	}

	updated, err := h.funnelService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	err := h.funnelService.Delete(c.Context(), id)
	if err != nil {
		if persistence.IsFunnelNotFound(err) {
			return notFound(c, "Funnel not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	published, err := h.publishingService.PublishFunnel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published)
}

func (h *APIHandlers) ArchiveFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	err := h.publishingService.ArchiveFunnel(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetPublishedFunnel serves the renderable view of a live funnel. Drafts and
// archived funnels 404 here no matter who asks.
func (h *APIHandlers) GetPublishedFunnel(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	funnel, err := h.funnelService.FetchPublished(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"id":       funnel.ID,
		"name":     funnel.Name,
		"slug":     funnel.Slug,
		"settings": funnel.Settings,
		"steps":    funnel.VisibleSteps(),
	})
}

// StartSession creates a runtime session on a published funnel.
func (h *APIHandlers) StartSession(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Funnel ID is required")
	}

	var req StartSessionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	funnel, err := h.funnelService.FetchPublished(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	team := h.funnelService.TeamForFunnel(c.Context(), funnel)

	sess, err := h.sessions.Create(c.Context(), funnel, team, req.UTM())
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(StartSessionResponse{
		SessionID:  sess.ID,
		FunnelID:   funnel.ID,
		FunnelName: funnel.Name,
		Settings:   funnel.Settings,
		StepIndex:  sess.Runtime.StepIndex(),
		Step:       sess.Runtime.CurrentStep(),
		StepCount:  len(funnel.VisibleSteps()),
	})
}

// Advance submits the active step's value. The runtime never errors: every
// outcome is reported in the response body with a 200.
func (h *APIHandlers) Advance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Session ID is required")
	}

	sess, ok := h.sessions.Get(id)
	if !ok {
		return notFound(c, "Session not found or expired")
	}

	var req AdvanceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if req.ConsentAccepted != nil {
		sess.Runtime.SetConsent(*req.ConsentAccepted)
	}

	result := sess.Runtime.Advance(c.Context(), req.Value)

	return c.JSON(AdvanceResponse{
		AdvanceResult: result,
		Step:          sess.Runtime.CurrentStep(),
		ConsentError:  sess.Runtime.ConsentError(),
	})
}

// SchedulingWebhook relays a widget postMessage into the booking event
// channel. Messages that are not completed bookings are acknowledged and
// dropped.
func (h *APIHandlers) SchedulingWebhook(c fiber.Ctx) error {
	var req SchedulingWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	payload, ok := booking.ParseWidgetMessage(req.Message)
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}

	event := events.BookingReceived{
		BaseEvent: events.NewBaseEvent(events.BookingReceivedEvent, ""),
		SessionID: req.SessionID,
		Origin:    req.Origin,
		Booking:   payload,
	}

	err := h.bookingBus.Publish(c.Context(), req.SessionID, event)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to publish booking event",
			"session_id", req.SessionID, "error", err)

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.funnelService.HealthCheck(c.Context())

	status := "unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"sessions":  h.sessions.Len(),
		"timestamp": time.Now().UTC(),
	})
}
