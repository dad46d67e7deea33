package server

import (
	"net/http"

	"github.com/contractguard/contractguard/core"
	"github.com/labstack/echo/v4"
)

type createSessionRequest struct {
	UserID    string   `json:"user_id"`
	Documents []string `json:"documents,omitempty"`
}

type sessionResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Documents []string       `json:"documents"`
	Messages  []core.Message `json:"messages,omitempty"`
}

func sessionView(sess *core.Session, withMessages bool) sessionResponse {
	resp := sessionResponse{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Documents: sess.Documents(),
	}
	if withMessages {
		resp.Messages = sess.Messages()
	}
	return resp
}

func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	sess, err := s.sessions.Create(req.UserID, req.Documents)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, sessionView(sess, false))
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, sessionView(sess, true))
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) querySession(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	msg, err := s.engine.Answer(c.Request().Context(), c.Param("id"), req.Query)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, msg)
}
