package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"alive-keeper/internal/services"
)

// SessionControl is the wallet session as the API sees it.
type SessionControl interface {
	Connect(ctx context.Context) (services.SessionState, error)
	Login(ctx context.Context) error
	Logout(ctx context.Context)
	State() services.SessionState
	Authenticated() bool
	Address() string
}

type AuthHandler struct {
	session SessionControl
}

func NewAuthHandler(session SessionControl) *AuthHandler {
	return &AuthHandler{session: session}
}

func (h *AuthHandler) Connect(c *gin.Context) {
	state, err := h.session.Connect(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": h.session.Address(),
		"state":   state,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	if err := h.session.Login(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": h.session.Address(),
		"state":   h.session.State(),
	})
}

func (h *AuthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"address":       h.session.Address(),
		"state":         h.session.State(),
		"authenticated": h.session.Authenticated(),
	})
}
