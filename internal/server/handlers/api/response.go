package api

import (
	"errors"

	"github.com/gin-gonic/gin"
)

func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	ctx.Abort()
	ctx.Error(err)
	ctx.PureJSON(status, SyftAPIError{
		Code:    code,
		Message: err.Error(),
	})
}

func AbortWithMessage(ctx *gin.Context, status int, code string, msg string) {
	AbortWithError(ctx, status, code, errors.New(msg))
}
