package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hearthvault/backend/internal/identity"
)

type setupRequestPayload struct {
	FamilyName  string `json:"family_name"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type actorResponsePayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	FamilyID    string `json:"family_id"`
}

func (h *httpHandler) handleSetupStatus(c *gin.Context) {
	required, err := h.identity.SetupRequired(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"setup_required": required})
}

func (h *httpHandler) handleSetup(c *gin.Context) {
	var request setupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	actor, credential, err := h.identity.InitializeSystem(c.Request.Context(), identitySetupInput(request))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, credential)
	c.JSON(http.StatusCreated, actorPayload(actor))
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	actor, credential, err := h.identity.Login(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, credential)
	c.JSON(http.StatusOK, actorPayload(actor))
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err == nil && token != "" {
		if err := h.identity.Logout(c.Request.Context(), token); err != nil {
			h.logger.Warn("logout failed", zap.Error(err))
		}
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, actorPayload(actor))
}

func identitySetupInput(request setupRequestPayload) identity.SetupInput {
	return identity.SetupInput{
		FamilyName:  request.FamilyName,
		Email:       request.Email,
		DisplayName: request.DisplayName,
		Password:    request.Password,
	}
}

func actorPayload(actor identity.Actor) actorResponsePayload {
	return actorResponsePayload{
		ID:          actor.ID,
		Email:       actor.Email,
		DisplayName: actor.DisplayName,
		Role:        string(actor.Role),
		FamilyID:    actor.FamilyID,
	}
}

type acceptInviteRequestPayload struct {
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type inviteResponsePayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *httpHandler) handleResolveInvite(c *gin.Context) {
	invite, err := h.invites.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inviteResponsePayload{
		ID:        invite.ID,
		Email:     invite.Email,
		Status:    string(invite.Status),
		ExpiresAt: invite.ExpiresAt,
	})
}

func (h *httpHandler) handleAcceptInvite(c *gin.Context) {
	var request acceptInviteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	actor, credential, err := h.invites.Accept(c.Request.Context(), c.Param("token"), request.DisplayName, request.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, credential)
	c.JSON(http.StatusCreated, actorPayload(actor))
}
