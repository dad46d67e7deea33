package server

import (
	"net/http"

	"github.com/contractguard/contractguard/core"
	"github.com/labstack/echo/v4"
)

type createTaskRequest struct {
	SessionID   string   `json:"session_id"`
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

func (s *Server) createTask(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "session_id is required"})
	}

	task, err := s.engine.Submit(c.Request().Context(), req.SessionID, core.TaskInput{
		Query:       req.Query,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) listTasks(c echo.Context) error {
	filter := core.TaskFilter{
		State:     core.TaskState(c.QueryParam("state")),
		SessionID: c.QueryParam("session_id"),
	}
	tasks, err := s.engine.List(c.Request().Context(), filter)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) getTask(c echo.Context) error {
	task, err := s.engine.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	if err := s.engine.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) executeTask(c echo.Context) error {
	task, err := s.engine.Execute(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, task)
}

func (s *Server) pauseTask(c echo.Context) error {
	task, err := s.engine.Pause(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) resumeTask(c echo.Context) error {
	task, err := s.engine.Resume(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) cancelTask(c echo.Context) error {
	task, err := s.engine.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}
