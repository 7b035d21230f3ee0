package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/geocoder89/authhub/internal/http/envelope"
	"github.com/gin-gonic/gin"
)

func RespondOK(ctx *gin.Context, message string, data any) {
	envelope.Success(ctx, http.StatusOK, message, data)
}

func RespondCreated(ctx *gin.Context, message string, data any) {
	envelope.Success(ctx, http.StatusCreated, message, data)
}

// RespondError classifies err and writes it. 5xx are logged as errors, the
// rest as warnings.
func RespondError(ctx *gin.Context, log *slog.Logger, err error, production bool) {
	ae := apperr.Classify(err, production)
	status := ae.Status()

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}

	if log != nil {
		log.Log(ctx.Request.Context(), level, "request failed",
			"kind", ae.Kind,
			"status", status,
			"err", err,
			"request_id", envelope.RequestID(ctx),
		)
	}

	envelope.Fail(ctx, status, string(ae.Kind), ae.Message, nil)
}

func RespondValidation(ctx *gin.Context, message string, details any) {
	envelope.Fail(ctx, http.StatusBadRequest, string(apperr.KindValidation), message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	envelope.Fail(ctx, http.StatusNotFound, string(apperr.KindNotFound), message, nil)
}
