package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"lostfound-rest-api/pkg/apierror"
)

// Recovery turns a panic in a handler into a 500 response and logs it with the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.ErrorContext(r.Context(), "panic recovered",
						"error", err,
						"request_id", GetRequestID(r.Context()),
						"stack", string(debug.Stack()),
					)
					writeError(w, apierror.InternalError("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
