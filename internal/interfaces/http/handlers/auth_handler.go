package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/application/service"
	"github.com/turtacn/certgate/internal/interfaces/http/middleware"
	"github.com/turtacn/certgate/pkg/logger"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService service.AuthAppService
	logger      logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthAppService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      log.WithComponent("AuthHandler"),
	}
}

// Login exchanges the administrator credential for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Logout records the logout. Sessions are stateless, so the token stays valid until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.SessionFrom(c)); err != nil {
		dto.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Logged out successfully"})
}
