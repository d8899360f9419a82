package middlewares

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftsync/internal/server/handlers/api"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errInvalidToken = errors.New("invalid bearer token")
)

// BearerAuth checks the Authorization header against a static token.
// An empty token disables the check.
func BearerAuth(token string) gin.HandlerFunc {
	if token == "" {
		return func(ctx *gin.Context) {
			ctx.Next()
		}
	}

	expected := []byte(token)
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errMissingToken)
			return
		}

		given, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(given), expected) != 1 {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errInvalidToken)
			return
		}

		ctx.Next()
	}
}
