package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hearthvault/backend/internal/attachments"
	"github.com/hearthvault/backend/internal/catalog"
	"github.com/hearthvault/backend/internal/entries"
	"github.com/hearthvault/backend/internal/fault"
	"github.com/hearthvault/backend/internal/identity"
	"github.com/hearthvault/backend/internal/invites"
)

const actorContextKey = "hearth_actor"

var (
	errMissingIdentityService   = errors.New("identity service dependency required")
	errMissingInviteService     = errors.New("invite service dependency required")
	errMissingCatalogService    = errors.New("catalog service dependency required")
	errMissingEntryService      = errors.New("entry service dependency required")
	errMissingAttachmentService = errors.New("attachment service dependency required")
)

// Dependencies wires the lifecycle services into the HTTP surface.
type Dependencies struct {
	Identity      *identity.Service
	Invites       *invites.Service
	Catalog       *catalog.Service
	Entries       *entries.Service
	Attachments   *attachments.Service
	CookieName    string
	SecureCookies bool
	AllowedOrigin string
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin router for the vault API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Identity == nil {
		return nil, errMissingIdentityService
	}
	if deps.Invites == nil {
		return nil, errMissingInviteService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogService
	}
	if deps.Entries == nil {
		return nil, errMissingEntryService
	}
	if deps.Attachments == nil {
		return nil, errMissingAttachmentService
	}

	cookieName := deps.CookieName
	if cookieName == "" {
		cookieName = "hearth_session"
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	// The session rides a credentialed cookie, so the allowed origin must be
	// pinned; browsers refuse credentialed responses carrying a wildcard.
	allowedOrigin := deps.AllowedOrigin
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:3000"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{allowedOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		identity:      deps.Identity,
		invites:       deps.Invites,
		catalog:       deps.Catalog,
		entries:       deps.Entries,
		attachments:   deps.Attachments,
		cookieName:    cookieName,
		secureCookies: deps.SecureCookies,
		logger:        logger,
	}

	router.GET("/setup/status", handler.handleSetupStatus)
	router.POST("/setup", handler.handleSetup)
	router.POST("/auth/login", handler.handleLogin)
	router.GET("/invites/:token", handler.handleResolveInvite)
	router.POST("/invites/:token/accept", handler.handleAcceptInvite)

	protected := router.Group("/")
	protected.Use(handler.requireSession)
	{
		protected.POST("/auth/logout", handler.handleLogout)
		protected.GET("/auth/me", handler.handleMe)

		protected.GET("/sections", handler.handleListSections)
		protected.POST("/sections", handler.handleCreateSection)
		protected.PATCH("/sections/:id", handler.handleUpdateSection)
		protected.POST("/sections/:id/reorder", handler.handleReorderSection)

		protected.GET("/entries", handler.handleListEntries)
		protected.POST("/entries", handler.handleCreateEntry)
		protected.GET("/entries/:id", handler.handleGetEntry)
		protected.PUT("/entries/:id", handler.handleUpdateEntry)
		protected.DELETE("/entries/:id", handler.handleDeleteEntry)
		protected.POST("/entries/:id/sensitive", handler.handleToggleSensitive)

		protected.POST("/uploads/presign", handler.handlePresignUpload)
		protected.POST("/attachments", handler.handleRecordAttachment)
		protected.GET("/attachments/:id/download", handler.handleDownloadAttachment)
		protected.DELETE("/attachments/:id", handler.handleDeleteAttachment)

		protected.GET("/members", handler.handleListMembers)
		protected.DELETE("/members/:id", handler.handleRemoveMember)
		protected.PATCH("/members/:id/role", handler.handleUpdateMemberRole)

		protected.GET("/admin/invites", handler.handleListInvites)
		protected.POST("/admin/invites", handler.handleCreateInvite)
		protected.POST("/admin/invites/:id/revoke", handler.handleRevokeInvite)
		protected.GET("/admin/activity", handler.handleActivity)
	}

	return router, nil
}

type httpHandler struct {
	identity      *identity.Service
	invites       *invites.Service
	catalog       *catalog.Service
	entries       *entries.Service
	attachments   *attachments.Service
	cookieName    string
	secureCookies bool
	logger        *zap.Logger
}

// requireSession resolves the session cookie into an actor. An invalid or
// expired cookie is cleared and the request rejected as anonymous.
func (h *httpHandler) requireSession(c *gin.Context) {
	token, err := c.Cookie(h.cookieName)
	if err != nil || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	actor, err := h.identity.Validate(c.Request.Context(), token)
	if err != nil {
		if fault.IsKind(err, fault.KindUnauthorized) {
			h.clearSessionCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}

	c.Set(actorContextKey, actor)
	c.Next()
}

func (h *httpHandler) actor(c *gin.Context) (identity.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return identity.Actor{}, false
	}
	actor, ok := value.(identity.Actor)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return identity.Actor{}, false
	}
	return actor, true
}

func (h *httpHandler) setSessionCookie(c *gin.Context, credential identity.Credential) {
	maxAge := int(time.Until(credential.ExpiresAt).Seconds())
	c.SetCookie(h.cookieName, credential.Token, maxAge, "/", "", h.secureCookies, true)
}

func (h *httpHandler) clearSessionCookie(c *gin.Context) {
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookies, true)
}

// writeError maps a fault kind to its HTTP status; anything untyped is a
// logged 500 with a generic body.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	var fe *fault.Error
	if errors.As(err, &fe) {
		c.JSON(statusForKind(fe.Kind()), gin.H{"error": fe.Message()})
		return
	}
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
}

func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.KindUnauthorized:
		return http.StatusUnauthorized
	case fault.KindPermissionDenied:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindValidationFailed:
		return http.StatusBadRequest
	case fault.KindConflict:
		return http.StatusConflict
	case fault.KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
