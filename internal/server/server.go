package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/service"
	"taskmanager/internal/storage"
	"taskmanager/internal/validation"
)

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides HTTP handlers for tasks and users.
type Server struct {
	engine *gin.Engine
	tasks  *service.TaskService
	users  *service.UserService
	health Pinger
	logger *slog.Logger
}

// New constructs the HTTP server with routes and middleware configured.
func New(tasks *service.TaskService, users *service.UserService, health Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(requestLogger(logger))

	srv := &Server{
		engine: router,
		tasks:  tasks,
		users:  users,
		health: health,
		logger: logger,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	tasks := s.engine.Group("/tasks")
	{
		tasks.GET("", s.handleListTasks)
		tasks.POST("", s.handleCreateTask)
		tasks.GET(":id", s.handleGetTask)
		tasks.PUT(":id", s.handleUpdateTask)
		tasks.DELETE(":id", s.handleDeleteTask)
	}

	users := s.engine.Group("/users")
	{
		users.GET("", s.handleListUsers)
		users.POST("", s.handleCreateUser)
		users.GET(":id", s.handleGetUser)
		users.PUT(":id", s.handleUpdateUser)
		users.DELETE(":id", s.handleDeleteUser)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
}

// handleHealth reports readiness, including storage reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to a positive int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// statusFor maps service and storage errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrUserReferenced):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		c.JSON(status, gin.H{"error": "validation failed", "fields": verr.Fields})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondBindError rejects a body that could not be decoded without echoing
// decoder internals to the client.
func (s *Server) respondBindError(c *gin.Context, err error) {
	s.logger.Debug("invalid request body", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// respondSuccess writes payload as JSON, or only the status when payload is nil.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
