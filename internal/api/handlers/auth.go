package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/auth"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/middleware"
)

// SignUp registers a new user and returns a session.
func SignUp(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in auth.SignUpInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondError(c, errBadRequest)
			return
		}
		sess, err := svc.SignUp(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, sess)
	}
}

// SignIn exchanges credentials for a session.
func SignIn(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		sess, err := svc.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// SignOut revokes the current token.
func SignOut(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.SignOut(c.Request.Context(), c.GetString(middleware.KeyToken)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// GetSession returns the signed-in profile.
func GetSession(svc *auth.Service, db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		profile, err := svc.Profile(ctx, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		isAdmin, err := admin.IsAdmin(ctx, db, profile.ID)
		if err != nil {
			log.Printf("[AUTH] Roster lookup failed for %s: %v", profile.ID, err)
		}
		c.JSON(http.StatusOK, gin.H{"profile": profile, "is_admin": isAdmin})
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// RequestPasswordReset always answers 200 so emails cannot be probed. In mock
// mode the token is echoed for local testing.
func RequestPasswordReset(svc *auth.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
			respondError(c, errBadRequest)
			return
		}
		token, err := svc.RequestPasswordReset(c.Request.Context(), req.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := gin.H{"ok": true, "message": "If the account exists, a reset link has been sent"}
		if cfg.MockMode && token != "" {
			resp["debug_token"] = token
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ResetPassword consumes a reset token.
func ResetPassword(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		if err := svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// ResendVerification issues a new email verification token.
func ResendVerification(svc *auth.Service, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req emailRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
			respondError(c, errBadRequest)
			return
		}
		token, err := svc.ResendVerification(c.Request.Context(), req.Email)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := gin.H{"ok": true}
		if cfg.MockMode && token != "" {
			resp["debug_token"] = token
		}
		c.JSON(http.StatusOK, resp)
	}
}

// VerifyEmail confirms an email verification token.
func VerifyEmail(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errBadRequest)
			return
		}
		if err := svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
