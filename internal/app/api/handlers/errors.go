package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/app/api/middleware"
	"github.com/fatflowers/autoinspect/pkg/apperr"
	"github.com/fatflowers/autoinspect/pkg/identity"
	"github.com/fatflowers/autoinspect/pkg/logctx"
	"github.com/fatflowers/autoinspect/pkg/response"
)

var classCodes = map[apperr.Class]response.APIResponseCode{
	apperr.ClassValidation: response.APIResponseCodeBadRequest,
	apperr.ClassInvariant:  response.APIResponseCodeConflict,
	apperr.ClassNotFound:   response.APIResponseCodeNotFound,
	apperr.ClassForbidden:  response.APIResponseCodeForbidden,
	apperr.ClassAuth:       response.APIResponseCodeUnauthorized,
	apperr.ClassInternal:   response.APIResponseCodeError,
}

// fail answers with the envelope code of err's class. Errors outside the
// apperr taxonomy are logged and reported as internal.
func fail(c *gin.Context, log *zap.SugaredLogger, err error) {
	if e, ok := apperr.As(err); ok {
		code, known := classCodes[e.Class]
		if !known {
			code = response.APIResponseCodeError
		}
		if code == response.APIResponseCodeError {
			logctx.FromGin(c, log).Errorw("request failed", "reason", e.Code, "err", err)
		}
		reply(c, response.ErrorT(code, response.ErrorData{Reason: e.Code, Detail: err.Error()}))
		return
	}
	logctx.FromGin(c, log).Errorw("request failed", "err", err)
	reply(c, response.ErrorT(response.APIResponseCodeError, response.ErrorData{Reason: "internal", Detail: "internal error"}))
}

func badRequest(c *gin.Context, err error) {
	reply(c, response.ErrorT(response.APIResponseCodeBadRequest, response.ErrorData{
		Reason: apperr.InvalidArgument.Code,
		Detail: err.Error(),
	}))
}

func ok[T any](c *gin.Context, data T) {
	reply(c, response.OKT(data))
}

func reply[T any](c *gin.Context, resp *response.APIResponse[T]) {
	c.Set(middleware.ResponseCodeKey, resp.Code)
	c.JSON(http.StatusOK, resp)
}

// caller returns the request identity. Routes are mounted behind
// middleware.RequireRole, so a missing identity is a wiring error.
func caller(c *gin.Context) identity.Identity {
	id, _ := middleware.Caller(c)
	return id
}
