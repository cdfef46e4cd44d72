package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

type AuthHandler struct {
	engine     *services.Engine
	jwtService *services.JWTService

	// exposeResetCode returns reset codes in the response. Outside of
	// development they only reach the server log.
	exposeResetCode bool
}

func NewAuthHandler(engine *services.Engine, jwtService *services.JWTService, exposeResetCode bool) *AuthHandler {
	return &AuthHandler{
		engine:          engine,
		jwtService:      jwtService,
		exposeResetCode: exposeResetCode,
	}
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	token, expiresAt, err := h.jwtService.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(status, gin.H{
		"token":      token,
		"expires_at": expiresAt.Unix(),
		"user": gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"provider":   user.Provider,
			"created_at": user.CreatedAt,
		},
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.engine.Register(req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	h.issue(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.engine.Login(req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.issue(c, http.StatusOK, user)
}

func (h *AuthHandler) SocialLogin(c *gin.Context) {
	var req models.SocialLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.engine.SocialLogin(req.Provider)
	if err != nil {
		respondError(c, err)
		return
	}

	h.issue(c, http.StatusOK, user)
}

// ForgotPassword issues a reset code. There is no mailer: development
// builds return the code, production only logs it. Unknown emails get the
// same answer as known ones.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	code, err := h.engine.ForgotPassword(req.Email)
	if err != nil && !errors.Is(err, services.ErrUserNotFound) {
		respondError(c, err)
		return
	}

	if !h.exposeResetCode {
		if err == nil {
			log.Printf("Password reset code for %s: %s", models.NormalizeEmail(req.Email), code)
		}
		c.JSON(http.StatusOK, gin.H{
			"message":    "If the account exists, a reset code was issued",
			"expires_in": 600,
		})
		return
	}

	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Reset code issued (demo)",
		"reset_code": code,
		"expires_in": 600,
	})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.engine.ResetPassword(req.Email, req.Code, req.Password); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset. Please sign in."})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.engine.Logout(c.GetString("user_id"))
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
