package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"lostfound-rest-api/internal/middleware"
	"lostfound-rest-api/internal/model"
	"lostfound-rest-api/pkg/apierror"
	"lostfound-rest-api/pkg/response"
)

// toAPIError maps domain errors to their HTTP form. Unknown errors become a bare 500.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		details := make([]apierror.FieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, apierror.FieldError{Field: f.Field, Message: f.Message})
		}
		message := "Validation failed"
		if len(verr.Fields) == 1 {
			message = verr.Fields[0].Message
		}
		return apierror.ValidationError(message, details...)
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return apierror.NotFound("Item not found")
	case errors.Is(err, model.ErrAlreadyClaimed):
		return apierror.Conflict("Item is already claimed")
	case errors.Is(err, model.ErrClaimedImmutable):
		return apierror.Conflict("Cannot update claimed items")
	case errors.Is(err, model.ErrConflict):
		return apierror.Conflict("Item state does not allow this operation")
	case errors.Is(err, model.ErrInvalidMediaType):
		return apierror.InvalidMediaType("Only image files are allowed")
	case errors.Is(err, model.ErrStorage):
		return apierror.InternalError("")
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.ServiceUnavailable("Request timed out")
	default:
		return apierror.InternalError("")
	}
}

// writeError logs server-side failures and writes the mapped error.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
	response.Error(w, apiErr)
}
