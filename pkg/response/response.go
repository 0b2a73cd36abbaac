package response

import (
	"errors"
	"net/http"

	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserIDKey is the gin context key set by the auth middleware.
const UserIDKey = "user_id"

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr := c.GetString(UserIDKey)
	if userIDStr == "" {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// OptionalUserID returns nil when the request is anonymous.
func OptionalUserID(c *gin.Context) *uuid.UUID {
	userID, err := GetUserID(c)
	if err != nil {
		return nil
	}
	return &userID
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	if code == http.StatusInternalServerError {
		logger.L.Error("internal error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		// Don't leak storage errors to clients.
		if !errors.Is(err, apperror.ErrInternal) {
			err = apperror.ErrInternal
		}
	}

	c.JSON(code, gin.H{"error": err.Error(), "code": apperror.Kind(err)})
}

// ValidationError renders a 400 with a readable message.
func ValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": apperror.Kind(apperror.ErrInvalidInput)})
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}
