// Package server exposes the webhook registration, event submission, and
// operator-recovery REST surface of SPEC_FULL's EXPANSION C, built the
// way the teacher composes its echo server (logger/recover/request-id
// middleware, a custom validator, explicit Shutdown).
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/casapps/hookrelay/src/internal/breaker"
	"github.com/casapps/hookrelay/src/internal/diagnostics"
	hrerrors "github.com/casapps/hookrelay/src/internal/errors"
	"github.com/casapps/hookrelay/src/internal/models"
	"github.com/casapps/hookrelay/src/internal/queue"
	"github.com/casapps/hookrelay/src/internal/repository"
)

// Server is the REST surface around the delivery core.
type Server struct {
	echo            *echo.Echo
	config          *viper.Viper
	webhooks        repository.WebhookRepository
	events          repository.EventRepository
	classifications repository.ErrorClassificationRepository
	queue           queue.Queue
	breaker         *breaker.Breaker
	startTime       time.Time
}

// New builds a Server and registers all routes.
func New(
	cfg *viper.Viper,
	webhooks repository.WebhookRepository,
	events repository.EventRepository,
	classifications repository.ErrorClassificationRepository,
	q queue.Queue,
	cb *breaker.Breaker,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewEchoValidator()
	e.HTTPErrorHandler = hrerrors.NewHandler(cfg).HTTPErrorHandler

	s := &Server{
		echo: e, config: cfg, webhooks: webhooks, events: events,
		classifications: classifications, queue: q, breaker: cb,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "  ${time_rfc3339} | ${status} | ${latency_human} | ${method} ${uri}\n",
		Output: s.getConsoleWriter(),
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)

	s.echo.POST("/webhooks", s.createWebhook)
	s.echo.GET("/webhooks/:id", s.getWebhook)
	s.echo.GET("/webhooks/:id/health", s.webhookHealth)
	s.echo.POST("/webhooks/:id/breaker/reset", s.resetBreaker)

	s.echo.POST("/events", s.createEvent)
	s.echo.GET("/events/:id", s.getEvent)
	s.echo.POST("/events/:id/resume", s.resumeEvent)
}

// Start begins serving HTTP on address, blocking until Shutdown.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) getConsoleWriter() io.Writer {
	return os.Stdout
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

type createWebhookRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Metadata string `json:"metadata"`
}

func (s *Server) createWebhook(c echo.Context) error {
	var req createWebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	webhook := &models.Webhook{URL: req.URL, Metadata: req.Metadata}
	if err := s.webhooks.Create(c.Request().Context(), webhook); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, webhook)
}

func (s *Server) getWebhook(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook id")
	}
	webhook, err := s.webhooks.Get(c.Request().Context(), id)
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "webhook not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, webhook)
}

func (s *Server) webhookHealth(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook id")
	}
	ctx := c.Request().Context()
	webhook, err := s.webhooks.Get(ctx, id)
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "webhook not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	limit := s.config.GetInt("diagnostics.recentClassificationLimit")
	recent, err := s.classifications.RecentForWebhook(ctx, id, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, diagnostics.Summarize(webhook, recent, limit))
}

func (s *Server) resetBreaker(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook id")
	}
	ctx := c.Request().Context()
	webhook, err := s.webhooks.Get(ctx, id)
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "webhook not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.breaker.Reset(webhook)
	if err := s.webhooks.Update(ctx, webhook); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, webhook)
}

type createEventRequest struct {
	WebhookID string          `json:"webhook_id" validate:"required,uuid4"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

func (s *Server) createEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	webhookID, err := uuid.Parse(req.WebhookID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook_id")
	}

	ctx := c.Request().Context()
	if _, err := s.webhooks.Get(ctx, webhookID); err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "webhook not found")
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	event := &models.Event{WebhookID: webhookID, Payload: []byte(req.Payload)}
	if err := s.events.Create(ctx, event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.queue.Enqueue(event)

	return c.JSON(http.StatusAccepted, event)
}

func (s *Server) getEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	event, err := s.events.Get(c.Request().Context(), id)
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, event)
}

// resumeEvent implements the operator-recovery hook of EXPANSION C:
// manually moving a PAUSED or terminal FAILURE event back onto the
// queue, e.g. after fixing the subscriber endpoint out of band.
func (s *Server) resumeEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	ctx := c.Request().Context()
	event, err := s.events.Get(ctx, id)
	if err == repository.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if event.Status != models.EventPaused && event.Status != models.EventFailure {
		return echo.NewHTTPError(http.StatusConflict, "only a PAUSED or FAILURE event can be resumed")
	}

	event.Status = models.EventPending
	event.NextAttemptAt = nil
	if err := s.events.Update(ctx, event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.queue.Enqueue(event)

	return c.JSON(http.StatusOK, event)
}
