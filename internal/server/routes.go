package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/syftsync/internal/server/handlers/api"
	"github.com/openmined/syftsync/internal/server/handlers/files"
	"github.com/openmined/syftsync/internal/server/handlers/lock"
	"github.com/openmined/syftsync/internal/server/middlewares"
	"github.com/openmined/syftsync/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()

	lockH := lock.New(svc.Locks)
	filesH := files.New(svc.Files, svc.Locks, config.TrackedFiles, config.MaxFileBytes)

	rateLimiter, err := middlewares.RateLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.SecureHeaders(config.HTTP.CertFile != ""))

	r.GET("/", IndexHandler)
	r.GET("/health", HealthHandler(config.AuthToken != ""))

	projects := r.Group("/projects/:project")
	projects.Use(rateLimiter)
	projects.Use(middlewares.BearerAuth(config.AuthToken))
	{
		// lease
		projects.POST("/lock", lockH.Acquire)
		projects.DELETE("/lock", lockH.Release)
		projects.POST("/lock/heartbeat", lockH.Heartbeat)

		// files
		projects.GET("/files", filesH.List)
		projects.GET("/files/:name", filesH.Get)
		projects.PUT("/files/:name", filesH.Put)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.SyftAPIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.SyftAPIError{
			Code:    api.CodeInvalidRequest,
			Message: "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.Detailed())
}

func HealthHandler(authRequired bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.PureJSON(http.StatusOK, gin.H{
			"status":       "ok",
			"authRequired": authRequired,
			"version":      version.Version,
		})
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
