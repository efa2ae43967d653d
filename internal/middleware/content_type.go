package middleware

import (
	"mime"
	"net/http"

	"go.uber.org/zap"
)

// RequireJSON rejects requests with a body that is not declared as JSON
func RequireJSON(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mediaType != "application/json" {
				logger.Debug("Rejected non-JSON request body",
					zap.String("content_type", r.Header.Get("Content-Type")),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
