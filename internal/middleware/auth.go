package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"anoa.com/loyaltyledger/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// InternalKeyHeader authenticates collaborator services on /internal routes.
const InternalKeyHeader = "X-Internal-Key"

type AuthMiddleware struct {
	secret      []byte
	internalKey string
}

func NewAuthMiddleware(secret, internalKey string) *AuthMiddleware {
	return &AuthMiddleware{
		secret:      []byte(secret),
		internalKey: internalKey,
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	// Fallback to query parameter "token" (useful for WebSockets)
	return c.Query("token")
}

// parse returns the subject of a valid token. The subject must be a user UUID.
func (m *AuthMiddleware) parse(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("invalid token subject")
	}
	return claims.Subject, nil
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required", "code": "UNAUTHORIZED"})
			return
		}

		userID, err := m.parse(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "UNAUTHORIZED"})
			return
		}

		c.Set(response.UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth sets the user when a valid token is present and lets anonymous
// requests through. A bad token is treated as anonymous.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if userID, err := m.parse(tokenString); err == nil {
				c.Set(response.UserIDKey, userID)
			}
		}
		c.Next()
	}
}

func (m *AuthMiddleware) RequireInternalKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(InternalKeyHeader)
		if m.internalKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(m.internalKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "internal access required", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}
