package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthvault/backend/internal/entries"
)

type entryRequestPayload struct {
	SectionID   string `json:"section_id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	IsSensitive bool   `json:"is_sensitive"`
}

type entryResponsePayload struct {
	ID          string    `json:"id"`
	SectionID   string    `json:"section_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsSensitive bool      `json:"is_sensitive"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type historyResponsePayload struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	EditedBy string    `json:"edited_by"`
	EditedAt time.Time `json:"edited_at"`
}

func entryPayload(entry entries.Entry) entryResponsePayload {
	return entryResponsePayload{
		ID:          entry.ID,
		SectionID:   entry.SectionID,
		Title:       entry.Title,
		Content:     entry.Content,
		IsSensitive: entry.IsSensitive,
		CreatedBy:   entry.CreatedBy,
		UpdatedBy:   entry.UpdatedBy,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

func (h *httpHandler) handleListEntries(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var (
		results []entries.Entry
		err     error
	)
	if query := c.Query("q"); query != "" {
		results, err = h.entries.Search(c.Request.Context(), actor, query)
	} else {
		results, err = h.entries.List(c.Request.Context(), actor, c.Query("section"))
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload := make([]entryResponsePayload, 0, len(results))
	for _, entry := range results {
		payload = append(payload, entryPayload(entry))
	}
	c.JSON(http.StatusOK, gin.H{"entries": payload})
}

func (h *httpHandler) handleCreateEntry(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request entryRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.entries.Create(c.Request.Context(), actor, entries.CreateInput{
		SectionID:   request.SectionID,
		Title:       request.Title,
		Content:     request.Content,
		IsSensitive: request.IsSensitive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entryPayload(entry))
}

func (h *httpHandler) handleGetEntry(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	entryID := c.Param("id")

	entry, err := h.entries.Get(c.Request.Context(), actor, entryID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	history, err := h.entries.History(c.Request.Context(), actor, entryID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	files, err := h.attachments.ListForEntry(c.Request.Context(), actor, entryID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	historyPayload := make([]historyResponsePayload, 0, len(history))
	for _, snapshot := range history {
		historyPayload = append(historyPayload, historyResponsePayload{
			ID:       snapshot.ID,
			Title:    snapshot.Title,
			Content:  snapshot.Content,
			EditedBy: snapshot.EditedBy,
			EditedAt: snapshot.EditedAt,
		})
	}
	attachmentPayload := make([]attachmentResponsePayload, 0, len(files))
	for _, file := range files {
		attachmentPayload = append(attachmentPayload, attachmentResponse(file))
	}

	c.JSON(http.StatusOK, gin.H{
		"entry":       entryPayload(entry),
		"history":     historyPayload,
		"attachments": attachmentPayload,
	})
}

func (h *httpHandler) handleUpdateEntry(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request entryRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.entries.Update(c.Request.Context(), actor, c.Param("id"), entries.UpdateInput{
		Title:       request.Title,
		Content:     request.Content,
		IsSensitive: request.IsSensitive,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryPayload(entry))
}

func (h *httpHandler) handleDeleteEntry(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.entries.SoftDelete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleToggleSensitive(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	entry, err := h.entries.ToggleSensitive(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entryPayload(entry))
}
