package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/zenjournal/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponsePayload struct {
	AccessToken string        `json:"access_token"`
	ExpiresIn   int64         `json:"expires_in"`
	TokenType   string        `json:"token_type"`
	User        users.Profile `json:"user"`
}

type profileUpdatePayload struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		invalidRequest(c)
		return
	}
	ctx := c.Request.Context()
	userID, err := h.users.CreateUser(ctx, request.Email, request.Password, request.Name, request.Avatar)
	if err != nil {
		h.respondError(c, err)
		return
	}
	profile, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusCreated, profile)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Email) == "" {
		invalidRequest(c)
		return
	}
	profile, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondWithToken(c, http.StatusOK, profile)
}

func (h *httpHandler) respondWithToken(c *gin.Context, status int, profile users.Profile) {
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), strconv.FormatUint(uint64(profile.ID), 10))
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Uint("user_id", profile.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(status, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User:        profile,
	})
}

func (h *httpHandler) handleGetProfile(c *gin.Context) {
	withUser(c, func(userID uint) {
		profile, err := h.users.GetUser(c.Request.Context(), userID)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	})
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	withUser(c, func(userID uint) {
		var request profileUpdatePayload
		if err := c.ShouldBindJSON(&request); err != nil {
			invalidRequest(c)
			return
		}
		profile, err := h.users.UpdateProfile(c.Request.Context(), userID, request.Name, request.Avatar)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	})
}

func (h *httpHandler) handleUpdatePreferences(c *gin.Context) {
	withUser(c, func(userID uint) {
		var preferences json.RawMessage
		if err := c.ShouldBindJSON(&preferences); err != nil {
			invalidRequest(c)
			return
		}
		profile, err := h.users.UpdatePreferences(c.Request.Context(), userID, preferences)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	})
}

func (h *httpHandler) handleDeleteAccount(c *gin.Context) {
	withUser(c, func(userID uint) {
		if err := h.users.DeleteUser(c.Request.Context(), userID); err != nil {
			h.respondError(c, err)
			return
		}
		h.logger.Info("account deleted", zap.Uint("user_id", userID))
		c.Status(http.StatusNoContent)
	})
}
