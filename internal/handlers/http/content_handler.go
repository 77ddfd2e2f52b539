package http

import (
	"net/http"
	"strconv"
	"strings"

	"tagfall/internal/core/domain"
	"tagfall/internal/core/ports"
	"tagfall/internal/infrastructure/dispatch"
	"tagfall/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ContentHandler is the read-side REST mirror of the realtime channel, for
// consumers that do not hold a websocket open.
type ContentHandler struct {
	messaging  ports.MessagingService
	moderation ports.ModerationService
	presence   ports.PresenceService
	providers  dispatch.ProviderDirectory
}

func NewContentHandler(
	messaging ports.MessagingService,
	moderation ports.ModerationService,
	presence ports.PresenceService,
	providers dispatch.ProviderDirectory,
) *ContentHandler {
	return &ContentHandler{
		messaging:  messaging,
		moderation: moderation,
		presence:   presence,
		providers:  providers,
	}
}

func (h *ContentHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/content/:tag", h.GetContent)
		api.GET("/providers", h.GetProviders)
		api.GET("/moderators", h.GetModerators)
		api.GET("/blocked/count", h.GetBlockedCount)
	}
}

// GetContent returns the filtered tag log, newest first. Query parameters:
// providers (comma separated), limit.
func (h *ContentHandler) GetContent(c *gin.Context) {
	tag := c.Param("tag")
	if err := validation.ValidateTag(tag); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := ports.ContentFilter{Limit: 100}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}
	if raw := c.Query("providers"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				filter.Providers = append(filter.Providers, domain.ProviderID(p))
			}
		}
	}

	items, err := h.messaging.Query(c.Request.Context(), tag, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tag":     domain.NormalizeTag(tag),
		"count":   len(items),
		"content": items,
	})
}

func (h *ContentHandler) GetProviders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.providers.AvailableProviders()})
}

func (h *ContentHandler) GetModerators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"moderators": h.presence.Current()})
}

func (h *ContentHandler) GetBlockedCount(c *gin.Context) {
	count, err := h.moderation.BlockedUserCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked_count": count})
}
