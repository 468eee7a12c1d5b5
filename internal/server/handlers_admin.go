package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthvault/backend/internal/catalog"
	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
)

type sectionRequestPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type sectionResponsePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	SortOrder   int    `json:"sort_order"`
	IsDefault   bool   `json:"is_default"`
}

func sectionPayload(section catalog.Section) sectionResponsePayload {
	return sectionResponsePayload{
		ID:          section.ID,
		Name:        section.Name,
		Description: section.Description,
		Icon:        section.Icon,
		SortOrder:   section.SortOrder,
		IsDefault:   section.IsDefault,
	}
}

func (h *httpHandler) handleListSections(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	sections, err := h.catalog.ListSections(c.Request.Context(), actor.FamilyID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := make([]sectionResponsePayload, 0, len(sections))
	for _, section := range sections {
		payload = append(payload, sectionPayload(section))
	}
	c.JSON(http.StatusOK, gin.H{"sections": payload})
}

func (h *httpHandler) handleCreateSection(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request sectionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	section, err := h.catalog.CreateCustom(c.Request.Context(), actor, catalog.CreateSectionInput{
		Name:        request.Name,
		Description: request.Description,
		Icon:        request.Icon,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sectionPayload(section))
}

func (h *httpHandler) handleUpdateSection(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request sectionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	err := h.catalog.UpdateSection(c.Request.Context(), actor, c.Param("id"), catalog.CreateSectionInput{
		Name:        request.Name,
		Description: request.Description,
		Icon:        request.Icon,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type reorderRequestPayload struct {
	Direction string `json:"direction"`
}

func (h *httpHandler) handleReorderSection(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request reorderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	direction, ok := catalog.ParseDirection(request.Direction)
	if !ok {
		h.writeError(c, fault.New(fault.KindValidationFailed, "server.reorder", "direction must be up or down"))
		return
	}

	if err := h.catalog.Reorder(c.Request.Context(), actor, c.Param("id"), direction); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type memberResponsePayload struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *httpHandler) handleListMembers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	members, err := h.identity.ListMembers(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := make([]memberResponsePayload, 0, len(members))
	for _, member := range members {
		payload = append(payload, memberResponsePayload{
			ID:          member.ID,
			Email:       member.Email,
			DisplayName: member.DisplayName,
			Role:        string(member.Role),
			CreatedAt:   member.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"members": payload})
}

func (h *httpHandler) handleRemoveMember(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.identity.RemoveMember(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type updateRoleRequestPayload struct {
	Role string `json:"role"`
}

func (h *httpHandler) handleUpdateMemberRole(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request updateRoleRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	role, ok := identity.ParseRole(request.Role)
	if !ok {
		h.writeError(c, fault.New(fault.KindValidationFailed, "server.update_role", "role must be admin or member"))
		return
	}

	if err := h.identity.UpdateMemberRole(c.Request.Context(), actor, c.Param("id"), role); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type createInviteRequestPayload struct {
	Email string `json:"email"`
}

func (h *httpHandler) handleCreateInvite(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request createInviteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	link, err := h.invites.Create(c.Request.Context(), actor, request.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"invite_id":  link.InviteID,
		"token":      link.Token,
		"url":        link.URL,
		"expires_at": link.ExpiresAt,
	})
}

func (h *httpHandler) handleListInvites(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	results, err := h.invites.List(c.Request.Context(), actor)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := make([]inviteResponsePayload, 0, len(results))
	for _, invite := range results {
		payload = append(payload, inviteResponsePayload{
			ID:        invite.ID,
			Email:     invite.Email,
			Status:    string(invite.Status),
			ExpiresAt: invite.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"invites": payload})
}

func (h *httpHandler) handleRevokeInvite(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.invites.Revoke(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleActivity(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	items, err := h.entries.RecentActivity(c.Request.Context(), actor, 100)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": items})
}
