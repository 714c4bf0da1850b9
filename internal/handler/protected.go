// File: protected.go

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/suleymanmyradov/ekey/internal/svc"
	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

const bearerPrefix = "EKey "

// ProtectedResourceHandler demonstrates a resource server consuming the
// Verifier against an arbitrary downstream handler: it runs the §4.5
// checks and, on success, delegates to next with the VerificationResult
// attached to the request context. Grounded on the teacher's
// shared/middleware/auth.go ExtractTokenFromHeader/SetUserContext pair,
// reworked from a long-lived session JWT onto EKey verification.
func ProtectedResourceHandler(ctx *svc.ServiceContext, next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := extractEKeyToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_request", []errorDetail{{Path: "authorization", Message: err.Error()}})
			return
		}

		result, err := ctx.Verifier.Verify(r.Context(), ekeytoken.VerifyRequest{
			Token:  token,
			Pop:    r.Header.Get("DPoP"),
			Method: r.Method,
			URL:    requestURL(r),
			TLS:    r.TLS,
		})
		if err != nil {
			writeVerifyError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withVerificationResult(r.Context(), result)))
	}
}

func extractEKeyToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("authorization header is required")
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", errors.New("authorization header must be 'EKey <token>'")
	}
	return strings.TrimPrefix(authHeader, bearerPrefix), nil
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func writeVerifyError(w http.ResponseWriter, err error) {
	var ekeyErr *ekeytoken.Error
	if !errors.As(err, &ekeyErr) {
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	status := http.StatusForbidden
	switch ekeyErr.Kind {
	case ekeytoken.ErrInvalidRequest:
		status = http.StatusBadRequest
	case ekeytoken.ErrInvalidToken, ekeytoken.ErrExpiredToken, ekeytoken.ErrInvalidProof:
		status = http.StatusUnauthorized
	case ekeytoken.ErrCapabilityMismatch, ekeytoken.ErrReplayDetected:
		status = http.StatusForbidden
	}
	writeError(w, status, string(ekeyErr.Kind), []errorDetail{{Path: "authorization", Message: ekeyErr.Message}})
}
