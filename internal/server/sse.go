package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/talentmatch/internal/stream"
)

// sseSink adapts an echo response into an event sink. Send returning an
// error signals the engines that the consumer is gone.
type sseSink struct {
	resp    *echo.Response
	flusher http.Flusher
}

func newSSESink(c echo.Context) (*sseSink, error) {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}
	return &sseSink{resp: resp, flusher: flusher}, nil
}

func (s *sseSink) Send(e stream.Event) error {
	data, err := json.Marshal(map[string]interface{}{
		"type": e.Type,
		"data": e.Data,
	})
	if err != nil {
		return err
	}
	if _, err := s.resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
