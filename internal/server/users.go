package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/models"
	"taskmanager/internal/service"
)

type userRequest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Timezone  *string `json:"timezone"`
	IsActive  bool    `json:"isActive"`
}

func (r userRequest) toUser() models.User {
	return models.User{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Timezone:  r.Timezone,
		IsActive:  r.IsActive,
	}
}

// handleListUsers returns all users.
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.GetAllUsers(c.Request.Context())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, users)
}

// handleCreateUser creates a new user.
func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	user, err := s.users.CreateUser(c.Request.Context(), req.toUser())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

// handleGetUser returns a single user.
func (s *Server) handleGetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, found, err := s.users.GetUserByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	if !found {
		s.respondError(c, http.StatusNotFound, &service.NotFoundError{Resource: service.ResourceUser, ID: id})
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

// handleUpdateUser replaces every mutable field of a user.
func (s *Server) handleUpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	user, err := s.users.UpdateUser(c.Request.Context(), id, req.toUser())
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, user)
}

// handleDeleteUser removes a user, subject to the configured delete policy.
func (s *Server) handleDeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.users.DeleteUser(c.Request.Context(), id); err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusNoContent, nil)
}
