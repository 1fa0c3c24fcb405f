// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"collectsync-service/internal/auth"
	"collectsync-service/internal/pkg/response"
	"collectsync-service/internal/pkg/xerrors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service *auth.Service
	logger  *zap.Logger
}

func NewAuthHandler(service *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, logger: logger}
}

type loginRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
	PIN     string `json:"pin" binding:"required"`
}

// Login verifies the PIN. With 2FA enabled the response only says a code was
// sent; the code itself arrives on the notification channel.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "staff_id and pin are required", err)
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.StaffID, req.PIN)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}
	if result.OTPRequired {
		response.Success(c, http.StatusAccepted, "verification code sent", result)
		return
	}
	response.Success(c, http.StatusOK, "logged in", result)
}

type otpRequest struct {
	StaffID string `json:"staff_id" binding:"required"`
	Code    string `json:"code" binding:"required"`
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "staff_id and code are required", err)
		return
	}

	result, err := h.service.VerifyOTP(c.Request.Context(), req.StaffID, req.Code)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}
	response.Success(c, http.StatusOK, "logged in", result)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(c.Request.Context())
	response.Success(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	switch {
	case xerrors.Is(err, xerrors.ErrRateLimited):
		response.Error(c, http.StatusTooManyRequests, "too many attempts", err)
	case xerrors.Is(err, xerrors.ErrInvalidCredential), xerrors.Is(err, xerrors.ErrInvalidOTP):
		response.Error(c, http.StatusUnauthorized, "invalid credentials", err)
	case xerrors.Is(err, xerrors.ErrInactiveAccount):
		response.Error(c, http.StatusForbidden, "account is inactive", err)
	default:
		h.logger.Error("login failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "login failed", nil)
	}
}
