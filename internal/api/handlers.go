package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/storage"
)

type RunRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Input    string `json:"input"`
}

type LanguageInfo struct {
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	Aliases        []string `json:"aliases"`
	CompileTimeout string   `json:"compile_timeout,omitempty"`
	RunTimeout     string   `json:"run_timeout"`
}

func (s *Server) setupRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("judge running") })
	app.Post("/run", s.runHandler)
	app.Get("/languages", s.languagesHandler)
	app.Get("/submissions", s.listSubmissionsHandler)
	app.Get("/submissions/:id", s.getSubmissionHandler)
}

func (s *Server) runHandler(c *fiber.Ctx) error {
	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := s.exec.Submit(c.UserContext(), model.ExecutionRequest{
		Language: req.Language,
		Source:   req.Code,
		Stdin:    req.Input,
	})
	switch {
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrUnsupportedLanguage):
		return c.Status(fiber.StatusBadRequest).JSON(model.Response{
			Success:  false,
			Error:    err.Error(),
			Language: req.Language,
		})
	case err != nil:
		return err
	}

	status := fiber.StatusOK
	if outcome.Status == model.StatusInfrastructureError {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(outcome.Response())
}

func (s *Server) languagesHandler(c *fiber.Ctx) error {
	specs := s.catalog.Specs()
	out := make([]LanguageInfo, 0, len(specs))
	for _, spec := range specs {
		info := LanguageInfo{
			Name:       spec.Name,
			Kind:       string(spec.Kind),
			Aliases:    spec.Aliases,
			RunTimeout: spec.RunTimeout.String(),
		}
		if spec.Kind.Compiled() {
			info.CompileTimeout = spec.CompileTimeout.String()
		}
		out = append(out, info)
	}
	return c.JSON(out)
}

func (s *Server) listSubmissionsHandler(c *fiber.Ctx) error {
	if s.history == nil {
		return fiber.NewError(fiber.StatusNotFound, "submission history is disabled")
	}
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be a non-negative integer")
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "offset must be a non-negative integer")
	}

	subs, err := s.history.List(c.UserContext(), storage.ListOptions{
		Language: c.Query("language"),
		Status:   model.Status(c.Query("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(subs)
}

func (s *Server) getSubmissionHandler(c *fiber.Ctx) error {
	if s.history == nil {
		return fiber.NewError(fiber.StatusNotFound, "submission history is disabled")
	}
	sub, err := s.history.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "submission not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(sub)
}
