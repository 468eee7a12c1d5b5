package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthvault/backend/internal/attachments"
)

type presignRequestPayload struct {
	EntryID     string `json:"entry_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type recordAttachmentRequestPayload struct {
	EntryID     string `json:"entry_id"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type attachmentResponsePayload struct {
	ID         string    `json:"id"`
	EntryID    string    `json:"entry_id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func attachmentResponse(attachment attachments.Attachment) attachmentResponsePayload {
	return attachmentResponsePayload{
		ID:         attachment.ID,
		EntryID:    attachment.EntryID,
		Filename:   attachment.Filename,
		MimeType:   attachment.MimeType,
		SizeBytes:  attachment.SizeBytes,
		UploadedBy: attachment.UploadedBy,
		CreatedAt:  attachment.CreatedAt,
	}
}

func (h *httpHandler) handlePresignUpload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request presignRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	grant, err := h.attachments.RequestUpload(c.Request.Context(), actor, request.EntryID, request.Filename, request.ContentType)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upload_url":   grant.UploadURL,
		"storage_path": grant.StoragePath,
	})
}

func (h *httpHandler) handleRecordAttachment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var request recordAttachmentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	attachment, err := h.attachments.Record(c.Request.Context(), actor, attachments.RecordInput{
		EntryID:     request.EntryID,
		Filename:    request.Filename,
		StoragePath: request.StoragePath,
		MimeType:    request.MimeType,
		SizeBytes:   request.SizeBytes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": attachmentResponse(attachment)})
}

func (h *httpHandler) handleDownloadAttachment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	downloadURL, err := h.attachments.RequestDownload(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": downloadURL})
}

func (h *httpHandler) handleDeleteAttachment(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.attachments.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
