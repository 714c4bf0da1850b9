// File: token.go

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/ekey/internal/svc"
	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

// issueRequestBody is the wire shape of POST /token, per spec.md §4.4's
// request fields and §6's external interface.
type issueRequestBody struct {
	Sub             string               `json:"sub"`
	Aud             string               `json:"aud"`
	Cap             ekeytoken.Capability `json:"cap"`
	TTL             int64                `json:"ttl,omitempty"`
	Bind            string               `json:"bind,omitempty"`
	JWK             *ekeytoken.JWK       `json:"jwk,omitempty"`
	CertFingerprint string               `json:"cert_fingerprint,omitempty"`
}

type cnfBody struct {
	JKT string `json:"jkt"`
}

type issueResponseBody struct {
	Token     string  `json:"token"`
	ExpiresAt int64   `json:"expires_at"`
	ExpiresIn int64   `json:"expires_in"`
	Trace     string  `json:"trace"`
	Cnf       cnfBody `json:"cnf"`
}

type errorDetail struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type errorResponseBody struct {
	Error   string        `json:"error"`
	Details []errorDetail `json:"details,omitempty"`
}

// TokenHandler serves POST /token, the issuance endpoint, over go-chi, per
// spec.md §6. Grounded on the teacher's
// shared/middleware/auth.go header-parsing idiom and go-chi's
// apierrors.ErrorHandler pattern observed in stacklok-toolhive, reworked
// into a single http.HandlerFunc since this endpoint has no sub-routes.
func TokenHandler(ctx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body issueRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", []errorDetail{{Path: "body", Message: "malformed JSON"}})
			return
		}

		resp, err := ctx.Issuer.Issue(r.Context(), ekeytoken.IssueRequest{
			Sub:             body.Sub,
			Aud:             body.Aud,
			Cap:             body.Cap,
			TTL:             body.TTL,
			Bind:            ekeytoken.BindMode(body.Bind),
			JWK:             body.JWK,
			CertFingerprint: body.CertFingerprint,
		})
		if err != nil {
			writeIssueError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, issueResponseBody{
			Token:     resp.Token,
			ExpiresAt: resp.ExpiresAt,
			ExpiresIn: resp.ExpiresIn,
			Trace:     resp.Trace,
			Cnf:       cnfBody{JKT: resp.CnfJKT},
		})
	}
}

func writeIssueError(w http.ResponseWriter, err error) {
	var ekeyErr *ekeytoken.Error
	if !errors.As(err, &ekeyErr) {
		logx.Errorf("unexpected issuer error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	switch ekeyErr.Kind {
	case ekeytoken.ErrInvalidRequest, ekeytoken.ErrInvalidBinding:
		writeError(w, http.StatusBadRequest, string(ekeyErr.Kind), []errorDetail{{Path: "body", Message: ekeyErr.Message}})
	case ekeytoken.ErrSignerFailure:
		logx.Errorf("signer failure: %v", ekeyErr)
		writeError(w, http.StatusInternalServerError, string(ekeyErr.Kind), nil)
	default:
		writeError(w, http.StatusBadRequest, string(ekeyErr.Kind), []errorDetail{{Path: "body", Message: ekeyErr.Message}})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind string, details []errorDetail) {
	writeJSON(w, status, errorResponseBody{Error: kind, Details: details})
}
