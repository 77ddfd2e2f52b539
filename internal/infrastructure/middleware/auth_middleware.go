package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ModeratorClaims are the JWT claims a moderator token carries. Subject is
// the moderator id.
type ModeratorClaims struct {
	DisplayName string `json:"display_name"`
	AvatarURI   string `json:"avatar_uri,omitempty"`
	jwt.RegisteredClaims
}

// ValidateModeratorToken parses and verifies a moderator JWT.
func ValidateModeratorToken(secret, tokenString string) (*ModeratorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ModeratorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*ModeratorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return claims, nil
}

// extractToken pulls the token from the Authorization header, or from the
// access_token query parameter since browsers cannot set headers on
// websocket upgrades.
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return c.Query("access_token")
}

func setModerator(c *gin.Context, claims *ModeratorClaims) {
	c.Set("moderator_id", claims.Subject)
	c.Set("moderator_name", claims.DisplayName)
	if claims.AvatarURI != "" {
		c.Set("moderator_avatar", claims.AvatarURI)
	}
}

// ModeratorAuth requires a valid moderator token.
func ModeratorAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}

		claims, err := ValidateModeratorToken(secret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		setModerator(c, claims)
		c.Next()
	}
}

// OptionalModeratorAuth upgrades the session to moderator when a valid token
// is presented; anonymous viewers pass through untouched.
func OptionalModeratorAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if claims, err := ValidateModeratorToken(secret, token); err == nil {
				setModerator(c, claims)
			}
		}
		c.Next()
	}
}
