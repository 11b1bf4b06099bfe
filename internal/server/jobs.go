package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/talentmatch/internal/store"
)

// JobStore is the slice of the store the job handlers need.
type JobStore interface {
	CreateJob(ctx context.Context, rec store.JobRecord) (store.JobRecord, error)
	GetJob(ctx context.Context, id string) (store.JobRecord, error)
	ListJobs(ctx context.Context) ([]store.JobRecord, error)
	DeleteJob(ctx context.Context, id string) error
}

type JobsHandler struct {
	Store JobStore
}

func (h *JobsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
}

func (h *JobsHandler) create(c echo.Context) error {
	var rec store.JobRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(rec.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}

	out, err := h.Store.CreateJob(c.Request().Context(), rec)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *JobsHandler) list(c echo.Context) error {
	out, err := h.Store.ListJobs(c.Request().Context())
	if err != nil {
		return err
	}
	if out == nil {
		out = []store.JobRecord{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *JobsHandler) get(c echo.Context) error {
	rec, err := h.Store.GetJob(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrJobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *JobsHandler) remove(c echo.Context) error {
	err := h.Store.DeleteJob(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrJobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
