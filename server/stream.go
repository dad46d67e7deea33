package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// streamTaskEvents streams task progress via SSE until the task reaches a
// terminal state or the client disconnects.
func (s *Server) streamTaskEvents(c echo.Context) error {
	taskID := c.Param("id")
	if _, err := s.engine.Get(c.Request().Context(), taskID); err != nil {
		return s.fail(c, err)
	}
	return s.stream(c, taskID)
}

// streamDocumentEvents streams document processing progress. Document topics
// have no backing store entry, so unknown ids simply produce an empty stream.
func (s *Server) streamDocumentEvents(c echo.Context) error {
	return s.stream(c, c.Param("id"))
}

func (s *Server) stream(c echo.Context, topicID string) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported by response writer")
	}
	flusher.Flush()

	events, cancel := s.engine.Publisher().Subscribe(topicID)
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				// Topic closed: terminal event delivered or buffer overflow.
				return nil
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("failed to marshal progress event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(c.Response(), "event: progress\ndata: %s\n\n", payload); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
