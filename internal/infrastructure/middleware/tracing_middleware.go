package middleware

import (
	"time"

	"tagfall/internal/core/domain"
	"tagfall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware creates a span per HTTP request, annotated with the
// hashtag and provider filter the request touches and the acting moderator
// when one is authenticated.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.host", c.Request.Host),
			attribute.String("http.user_agent", c.Request.UserAgent()),
			attribute.String("http.remote_addr", c.ClientIP()),
		)

		// Domain attributes. The tag comes from the content route param or
		// the websocket t= query; both normalize the same way.
		if tag := c.Param("tag"); tag != "" {
			span.SetAttributes(tracing.TagKey.String(domain.NormalizeTag(tag)))
		} else if tags := c.Query("t"); tags != "" {
			span.SetAttributes(tracing.TagKey.String(tags))
		}
		if providers := c.Query("providers"); providers != "" {
			span.SetAttributes(tracing.ProviderIDKey.String(providers))
		}

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if moderatorID, ok := c.Get("moderator_id"); ok {
			if id, ok := moderatorID.(string); ok {
				span.SetAttributes(tracing.ModeratorIDKey.String(id))
			}
		}

		span.SetAttributes(
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.response_size", int64(c.Writer.Size())),
			attribute.Int64("http.duration_ms", duration.Milliseconds()),
		)

		if c.Writer.Status() >= 400 {
			span.SetStatus(codes.Error, c.Errors.String())
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}
