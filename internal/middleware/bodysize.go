package middleware

import (
	"net/http"
)

// Body size limits.
const (
	// MaxWebhookBodySize bounds WhatsApp webhook payloads (1MB).
	MaxWebhookBodySize = 1 << 20

	// MaxJSONBodySize bounds JSON API requests (256KB).
	MaxJSONBodySize = 256 << 10
)

// BodySizeLimiter limits the size of request bodies to protect against
// oversized payloads.
func BodySizeLimiter(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			// MaxBytesReader also covers chunked encoding.
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// BodySizeLimiterWebhook returns a middleware limiting webhook payload bodies.
func BodySizeLimiterWebhook() func(http.Handler) http.Handler {
	return BodySizeLimiter(MaxWebhookBodySize)
}
