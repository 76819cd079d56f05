// Package auth extracts the authenticated principal from requests. Session
// issuance and account management live in a separate identity service;
// this middleware only verifies the token it issued.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const principalKey = "principal"

// Principal is the authenticated caller.
type Principal struct {
	ID          primitive.ObjectID
	IsAdmin     bool
	SectionID   primitive.ObjectID
	CommunityID primitive.ObjectID
}

// Middleware verifies the bearer token and stores the principal on the
// request context.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		principal, err := principalFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalFromClaims(claims jwt.MapClaims) (Principal, error) {
	var principal Principal

	sub, _ := claims["sub"].(string)
	id, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return principal, fmt.Errorf("invalid subject claim")
	}
	principal.ID = id

	if sectionHex, _ := claims["section_id"].(string); sectionHex != "" {
		if principal.SectionID, err = primitive.ObjectIDFromHex(sectionHex); err != nil {
			return principal, fmt.Errorf("invalid section claim")
		}
	}
	if communityHex, _ := claims["community_id"].(string); communityHex != "" {
		if principal.CommunityID, err = primitive.ObjectIDFromHex(communityHex); err != nil {
			return principal, fmt.Errorf("invalid community claim")
		}
	}
	principal.IsAdmin, _ = claims["is_admin"].(bool)

	return principal, nil
}

// RequireAdmin aborts requests whose principal is not an admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := FromContext(c)
		if !ok || !principal.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// FromContext returns the principal stored by Middleware.
func FromContext(c *gin.Context) (Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}
	principal, ok := value.(Principal)
	return principal, ok
}
