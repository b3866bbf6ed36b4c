package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-request-context/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-request-context/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-request-context/internal/domain"
	"github.com/jsamuelsen/go-request-context/internal/platform/logging"
)

// MapDomainError maps a domain error to an HTTP status and error envelope.
// Unknown errors become a 500 with a generic message.
func MapDomainError(err error) (int, *dto.ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case domain.IsServerNameMismatch(err):
		return http.StatusMisdirectedRequest, dto.NewErrorResponse(dto.ErrorCodeMisdirected, err.Error())

	case domain.IsNotFound(err):
		return http.StatusNotFound, dto.NewErrorResponse(dto.ErrorCodeNotFound, err.Error())

	case domain.IsValidation(err):
		resp := dto.NewErrorResponse(dto.ErrorCodeValidation, err.Error())

		var verr *domain.ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			resp.Error.Details = map[string]string{verr.Field: verr.Message}
		}

		return http.StatusBadRequest, resp

	default:
		return http.StatusInternalServerError, dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred")
	}
}

// RespondWithError writes err as an error envelope carrying the trace ID.
// Internal errors are logged in full since the response hides them.
func RespondWithError(c *gin.Context, err error) {
	c.JSON(errorResponse(c, err))
}

// AbortWithError is RespondWithError that also stops the chain. It is the
// application's error handler for rejected request contexts.
func AbortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorResponse(c, err))
}

// RespondWithErrorCode writes an envelope for an adapter-level error that has
// no domain counterpart.
func RespondWithErrorCode(c *gin.Context, code, message string) {
	resp := dto.NewErrorResponse(code, message).WithTraceID(middleware.TraceID(c))
	c.JSON(dto.HTTPStatusFromCode(code), resp)
}

func errorResponse(c *gin.Context, err error) (int, *dto.ErrorResponse) {
	status, resp := MapDomainError(err)
	resp.WithTraceID(middleware.TraceID(c))

	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "internal error",
			slog.Any("error", err),
			slog.String("trace_id", resp.TraceID),
		)
	}

	return status, resp
}
