// Package httpapi exposes manual triggers for the pipeline stages, their
// status and Prometheus metrics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/custodia-labs/kbsync/internal/core/domain"
	"github.com/custodia-labs/kbsync/internal/core/ports/driving"
	"github.com/custodia-labs/kbsync/internal/logger"
)

// Response texts for successful manual runs.
const (
	FetchSucceeded   = "Data successfully fetched and stored."
	PublishSucceeded = "Data successfully flattened and published."
)

// Server routes HTTP triggers to the stage services.
type Server struct {
	app     *fiber.App
	fetch   driving.FetchService
	publish driving.PublishService
}

// Option customises the server.
type Option func(*Server)

// WithMetrics serves Prometheus metrics at /metrics and records request
// metrics under serviceName.
func WithMetrics(serviceName string) Option {
	return func(s *Server) {
		prom := fiberprometheus.New(serviceName)
		prom.RegisterAt(s.app, "/metrics")
		s.app.Use(prom.Middleware)
	}
}

// New creates a server for the given services.
func New(fetch driving.FetchService, publish driving.PublishService, opts ...Option) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "kbsync",
			DisableStartupMessage: true,
			// No write timeout: cycles run synchronously inside the request.
			ReadTimeout: 30 * time.Second,
		}),
		fetch:   fetch,
		publish: publish,
	}
	s.app.Use(recover.New())
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/status", s.handleStatus)

	for _, method := range []string{fiber.MethodGet, fiber.MethodPost} {
		s.app.Add(method, "/fetch", s.handleFetch)
		s.app.Add(method, "/publish", s.handlePublish)
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			logger.Warn("Error shutting down HTTP server: %v", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleFetch(c *fiber.Ctx) error {
	opts := driving.FetchOptions{ForceFull: c.QueryBool("full")}
	if _, err := s.fetch.RunFetch(c.UserContext(), opts); err != nil {
		return failure(c, err)
	}
	return c.SendString(FetchSucceeded)
}

func (s *Server) handlePublish(c *fiber.Ctx) error {
	if _, err := s.publish.RunPublish(c.UserContext()); err != nil {
		return failure(c, err)
	}
	return c.SendString(PublishSucceeded)
}

type stageStatus struct {
	Running    bool                `json:"running"`
	RunID      string              `json:"run_id,omitempty"`
	Processed  int                 `json:"records_processed"`
	Errors     int                 `json:"error_count"`
	LastReport *domain.CycleReport `json:"last_report,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	ctx := c.UserContext()
	out := fiber.Map{}

	fs, err := s.fetch.Status(ctx)
	if err != nil {
		return failure(c, err)
	}
	ps, err := s.publish.Status(ctx)
	if err != nil {
		return failure(c, err)
	}
	out[string(domain.StageFetch)] = toStageStatus(fs)
	out[string(domain.StagePublish)] = toStageStatus(ps)
	return c.JSON(out)
}

func toStageStatus(st *driving.SyncStatus) stageStatus {
	if st == nil {
		return stageStatus{}
	}
	return stageStatus{
		Running:    st.Running,
		RunID:      st.RunID,
		Processed:  st.RecordsProcessed,
		Errors:     st.ErrorCount,
		LastReport: st.LastReport,
	}
}

// failure answers 409 for overlapping runs and 500 with the error text
// for everything else.
func failure(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if errors.Is(err, domain.ErrSyncInProgress) {
		status = fiber.StatusConflict
	}
	logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(status).SendString(err.Error())
}
