package lock

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftsync/internal/server/handlers/api"
	"github.com/openmined/syftsync/internal/server/lockstore"
	"github.com/openmined/syftsync/internal/utils"
)

type LockHandler struct {
	locks *lockstore.Store
}

func New(locks *lockstore.Store) *LockHandler {
	return &LockHandler{locks: locks}
}

func (h *LockHandler) Acquire(ctx *gin.Context) {
	projectID, clientID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	lease, err := h.locks.Acquire(ctx.Request.Context(), projectID, clientID)
	if err != nil {
		var held *lockstore.HeldError
		if errors.As(err, &held) {
			apiErr := NewLockHeldAPIError(held)
			ctx.Abort()
			ctx.Error(apiErr)
			ctx.PureJSON(http.StatusConflict, apiErr)
			return
		}
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &LockResponse{Lock: lockFromLease(lease)})
}

func (h *LockHandler) Release(ctx *gin.Context) {
	projectID, clientID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	released, err := h.locks.Release(ctx.Request.Context(), projectID, clientID)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &ReleaseResponse{Released: released})
}

func (h *LockHandler) Heartbeat(ctx *gin.Context) {
	projectID, clientID, ok := requestIdentity(ctx)
	if !ok {
		return
	}

	lease, err := h.locks.Renew(ctx.Request.Context(), projectID, clientID)
	if errors.Is(err, lockstore.ErrNotHolder) {
		api.AbortWithError(ctx, http.StatusConflict, api.CodeLockNotHeld, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &LockResponse{Lock: lockFromLease(lease)})
}

func requestIdentity(ctx *gin.Context) (projectID, clientID string, ok bool) {
	projectID = ctx.Param("project")
	if !utils.IsValidProjectID(projectID) {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "invalid project id")
		return "", "", false
	}

	clientID = ctx.GetHeader(api.HeaderClientID)
	if clientID == "" {
		api.AbortWithMessage(ctx, http.StatusBadRequest, api.CodeInvalidRequest, "header '"+api.HeaderClientID+"' is required")
		return "", "", false
	}

	return projectID, clientID, true
}
