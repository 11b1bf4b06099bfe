package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/talentmatch/internal/store"
	"github.com/mohammad-safakhou/talentmatch/internal/tools/resumesearch"
)

// ResumeStore is the slice of the store the resume handlers need.
type ResumeStore interface {
	CreateResume(ctx context.Context, rec store.ResumeRecord) (store.ResumeRecord, error)
	GetResume(ctx context.Context, id string) (store.ResumeRecord, error)
	ListResumes(ctx context.Context) ([]store.ResumeRecord, error)
	DeleteResume(ctx context.Context, id string) error
}

type ResumesHandler struct {
	Store  ResumeStore
	Search *resumesearch.Index
}

func (h *ResumesHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.remove)
}

func (h *ResumesHandler) create(c echo.Context) error {
	var rec store.ResumeRecord
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(rec.Name) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}

	out, err := h.Store.CreateResume(c.Request().Context(), rec)
	if err != nil {
		return err
	}
	if h.Search != nil {
		if err := h.Search.Add(out); err != nil {
			c.Logger().Warnf("indexing resume %s failed: %v", out.ID, err)
		}
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *ResumesHandler) list(c echo.Context) error {
	out, err := h.Store.ListResumes(c.Request().Context())
	if err != nil {
		return err
	}
	if out == nil {
		out = []store.ResumeRecord{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ResumesHandler) get(c echo.Context) error {
	rec, err := h.Store.GetResume(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrResumeNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *ResumesHandler) remove(c echo.Context) error {
	id := c.Param("id")
	err := h.Store.DeleteResume(c.Request().Context(), id)
	if errors.Is(err, store.ErrResumeNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	if h.Search != nil {
		if err := h.Search.Remove(id); err != nil {
			c.Logger().Warnf("removing resume %s from index failed: %v", id, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}
