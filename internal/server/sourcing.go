package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/talentmatch/internal/orchestration"
	"github.com/mohammad-safakhou/talentmatch/internal/staterepo"
	"github.com/mohammad-safakhou/talentmatch/internal/stream"
)

type SourcingHandler struct {
	Loop   *orchestration.Loop
	States *staterepo.Repo
	Logger *log.Logger
}

type sourcingRequest struct {
	RunID   string               `json:"run_id"`
	Message string               `json:"message"`
	State   *orchestration.State `json:"agent_state,omitempty"`
}

func (h *SourcingHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

// chat drives one interaction with the sourcing agent over SSE. A fresh
// message starts a run; a message carrying the run_id of a paused run
// resumes it where it stopped.
func (h *SourcingHandler) chat(c echo.Context) error {
	var req sourcingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	ctx := c.Request().Context()

	// State supplied inline wins over the server-side copy; both resume the
	// same paused run.
	st := req.State
	if st == nil && req.RunID != "" {
		loaded, err := h.States.Load(ctx, req.RunID)
		if err != nil && !errors.Is(err, staterepo.ErrNotFound) {
			return err
		}
		st = loaded
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	sink, err := newSSESink(c)
	if err != nil {
		return err
	}
	// Every event carries the run id so the client can resume later.
	tagged := stream.SinkFunc(func(e stream.Event) error {
		return sink.Send(stream.Event{Type: e.Type, Data: map[string]interface{}{
			"run_id":  req.RunID,
			"payload": e.Data,
		}})
	})

	final, err := h.Loop.Run(ctx, orchestration.Request{Message: req.Message, State: st}, tagged)
	if err != nil {
		h.Logger.Printf("sourcing run %s ended early: %v", req.RunID, err)
		return nil
	}

	if final.PendingAction == orchestration.PendingAskUser {
		if err := h.States.Save(ctx, req.RunID, final); err != nil {
			h.Logger.Printf("saving paused run %s failed: %v", req.RunID, err)
		}
	} else if st != nil {
		// The resumed run finished; drop the stored state.
		if err := h.States.Delete(ctx, req.RunID); err != nil {
			h.Logger.Printf("deleting finished run %s failed: %v", req.RunID, err)
		}
	}
	return nil
}
