package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/mattjoyce/xxl-executor/internal/protocol"
)

const wrongTokenMsg = "The access token is wrong."

// ValidateAccessToken returns true if provided matches configured.
// Callers skip validation entirely when configured is empty.
func ValidateAccessToken(provided, configured string) bool {
	if configured == "" || provided == "" {
		return false
	}
	if len(provided) != len(configured) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}

// authMiddleware rejects requests whose access token header does not match.
// The admin expects a 200 with a failure envelope, not a 401.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AccessToken != "" && !ValidateAccessToken(r.Header.Get(protocol.AccessTokenHeader), s.config.AccessToken) {
			s.logger.Warn("rejected request with wrong access token", "path", r.URL.Path, "remote", r.RemoteAddr)
			respondReturn(w, protocol.Fail(wrongTokenMsg))
			return
		}
		next.ServeHTTP(w, r)
	})
}
