package middleware

import (
	"log/slog"
	"net/http"

	slackapi "github.com/slack-go/slack"
)

// SlackSignature rejects requests whose X-Slack-Signature does not match the
// signing secret. It must run after BodyReader.
func SlackSignature(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, ok := RawBody(r)
			if !ok {
				http.Error(w, "request body not available for signature verification", http.StatusInternalServerError)
				return
			}

			verifier, err := slackapi.NewSecretsVerifier(r.Header, secret)
			if err != nil {
				logger.Warn("slack signature headers rejected", "path", r.URL.Path, "error", err)
				http.Error(w, "invalid slack signature", http.StatusUnauthorized)
				return
			}
			if _, err := verifier.Write(body); err != nil {
				http.Error(w, "invalid slack signature", http.StatusUnauthorized)
				return
			}
			if err := verifier.Ensure(); err != nil {
				logger.Warn("slack signature mismatch", "path", r.URL.Path, "remote", remoteIP(r, false))
				http.Error(w, "invalid slack signature", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rawBodyKey is used to store the raw request body in context (set by BodyReader middleware).
type rawBodyKey struct{}

// RawBody returns the bytes buffered by BodyReader.
func RawBody(r *http.Request) ([]byte, bool) {
	body, ok := r.Context().Value(rawBodyKey{}).([]byte)
	return body, ok
}
