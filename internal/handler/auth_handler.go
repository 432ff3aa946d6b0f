package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler handles account and session requests.
type AuthHandler struct {
	authService    service.AuthService
	authMiddleware *middleware.AuthMiddleware
	cookie         CookieConfig
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, authMiddleware *middleware.AuthMiddleware, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		authMiddleware: authMiddleware,
		cookie:         cookie,
	}
}

// RegisterRoutes registers all routes.
func (h *AuthHandler) RegisterRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		// Public routes
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)

		// Protected routes
		auth.POST("/logout", h.authMiddleware.RequireAuth(), h.Logout)
		auth.PUT("/update-profile", h.authMiddleware.RequireAuth(), h.UpdateProfile)
		auth.GET("/check", h.authMiddleware.RequireAuth(), h.Check)
	}
}

// Signup handles user registration.
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid signup request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Signup(ctx, &req)
	if err != nil {
		writeError(c, err, "failed to sign up")
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	response.Created(c, result)
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.authService.Login(ctx, &req)
	if err != nil {
		writeError(c, err, "failed to login")
		return
	}

	h.setSessionCookie(c, result.Token, result.ExpiresAt)
	response.Success(c, result)
}

// Logout revokes the session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context(), middleware.GetClaims(c))
	h.clearSessionCookie(c)
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// UpdateProfile replaces the caller's profile picture.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	userID := middleware.GetUserID(c)

	var req domain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid update profile request")
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.authService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		writeError(c, err, "failed to update profile")
		return
	}

	response.Success(c, user)
}

// Check returns the authenticated user.
func (h *AuthHandler) Check(c *gin.Context) {
	user, err := h.authService.GetUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err, "failed to get user")
		return
	}
	response.Success(c, user)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, int(time.Until(expiresAt).Seconds()), "/", "", h.cookie.Secure, true)
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}
