package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sudankdk/judge/internal/languages"
	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/storage"
)

// Submitter runs a submission to completion.
type Submitter interface {
	Submit(ctx context.Context, req model.ExecutionRequest) (*model.ExecutionOutcome, error)
}

// Catalog lists the configured languages.
type Catalog interface {
	Specs() []languages.Spec
}

// History is the read side of the submission store.
type History interface {
	Get(ctx context.Context, id string) (*storage.Submission, error)
	List(ctx context.Context, opts storage.ListOptions) ([]storage.Submission, error)
}

type Server struct {
	exec    Submitter
	catalog Catalog
	history History
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer builds the app. history may be nil, in which case the
// submission routes answer 404.
func NewServer(exec Submitter, catalog Catalog, history History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{exec: exec, catalog: catalog, history: history, logger: logger}

	app := fiber.New(fiber.Config{
		AppName:               "judge",
		DisableStartupMessage: true,
		BodyLimit:             1 << 20,
		ReadTimeout:           30 * time.Second,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	s.setupRoutes(app)
	s.app = app
	return s
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) StartServer(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		msg = e.Message
	} else {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": msg})
}
