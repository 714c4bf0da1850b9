// File: context.go

package handler

import (
	"context"

	"github.com/suleymanmyradov/ekey/pkg/ekeytoken"
)

type verificationResultKey struct{}

func withVerificationResult(ctx context.Context, result *ekeytoken.VerificationResult) context.Context {
	return context.WithValue(ctx, verificationResultKey{}, result)
}

// VerificationResultFromContext returns the VerificationResult attached by
// ProtectedResourceHandler, if any.
func VerificationResultFromContext(ctx context.Context) (*ekeytoken.VerificationResult, bool) {
	result, ok := ctx.Value(verificationResultKey{}).(*ekeytoken.VerificationResult)
	return result, ok
}
