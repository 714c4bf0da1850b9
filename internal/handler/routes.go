// File: routes.go

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suleymanmyradov/ekey/internal/svc"
)

// demoProtectedHandler is the sample resource the Verifier guards: it
// echoes back the authorized subject and capability, standing in for
// whatever sensitive action a real deployment binds to an E-Key.
func demoProtectedHandler(w http.ResponseWriter, r *http.Request) {
	result, ok := VerificationResultFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sub":    result.Sub,
		"action": result.Cap.Action,
		"trace":  result.Trace,
	})
}

// NewRouter builds the ekey HTTP surface: POST /token for issuance, and a
// demo protected resource under /protected/ guarded by the Verifier.
// Grounded on go-chi usage observed across the example corpus (e.g.
// stacklok-toolhive's WorkloadRouter).
func NewRouter(ctx *svc.ServiceContext) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Post("/token", TokenHandler(ctx))
	r.Handle("/protected/payments", ProtectedResourceHandler(ctx, http.HandlerFunc(demoProtectedHandler)))

	return r
}
