package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/dispatch"
	"github.com/contractguard/contractguard/engine"
	"github.com/contractguard/contractguard/logging"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Logger *logging.ContractGuardLogger
	// Version is reported in the agent card.
	Version string
}

// Server serves the ContractGuard HTTP API.
type Server struct {
	echo       *echo.Echo
	engine     *engine.Engine
	sessions   core.SessionStore
	dispatcher *dispatch.Dispatcher
	registry   *capability.Registry
	logger     *logging.ContractGuardLogger
	version    string
}

// New builds the server and registers all routes.
func New(eng *engine.Engine, sessions core.SessionStore, d *dispatch.Dispatcher, registry *capability.Registry, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:  logging.NewLogger(logging.DefaultLoggerConfig()).WithComponent("server"),
		Version: "1.0.0",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:       e,
		engine:     eng,
		sessions:   sessions,
		dispatcher: d,
		registry:   registry,
		logger:     opts.Logger,
		version:    opts.Version,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.health)
	s.echo.GET("/.well-known/agent-card.json", s.agentCard)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/sessions", s.createSession)
	v1.GET("/sessions/:id", s.getSession)
	v1.POST("/sessions/:id/query", s.querySession)

	v1.POST("/tasks", s.createTask)
	v1.GET("/tasks", s.listTasks)
	v1.GET("/tasks/:id", s.getTask)
	v1.DELETE("/tasks/:id", s.deleteTask)
	v1.POST("/tasks/:id/execute", s.executeTask)
	v1.POST("/tasks/:id/pause", s.pauseTask)
	v1.POST("/tasks/:id/resume", s.resumeTask)
	v1.POST("/tasks/:id/cancel", s.cancelTask)
	v1.GET("/tasks/:id/events", s.streamTaskEvents)

	v1.GET("/documents/:id/events", s.streamDocumentEvents)

	v1.GET("/tools", s.listTools)
	v1.POST("/tools/:name/invoke", s.invokeTool)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps domain errors onto status codes.
func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrOverloaded):
		status = http.StatusTooManyRequests
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
