// File: usagestore.go

package ekeytoken

import (
	"context"
	"fmt"
)

// UsageStoreErrorKind distinguishes the two terminal outcomes Consume can
// report besides success.
type UsageStoreErrorKind string

const (
	// UsageTokenExpired means now is past the trace's exp, whether the
	// record existed already or this is the first observation.
	UsageTokenExpired UsageStoreErrorKind = "token_expired"

	// UsageLimitExhausted means the trace's record exists, is not
	// expired, and has already reached its limit.
	UsageLimitExhausted UsageStoreErrorKind = "limit_exhausted"
)

// UsageStoreError reports a non-ok Consume outcome.
type UsageStoreError struct {
	Kind UsageStoreErrorKind
}

func (e *UsageStoreError) Error() string {
	return fmt.Sprintf("usage store: %s", e.Kind)
}

// UsageStore enforces at-most-limit consumptions of a single-use trace,
// atomically, per spec.md §4.3:
//
//  1. no record + now > exp            -> TokenExpired (no record created)
//  2. no record + now <= exp           -> create {used:1,limit,exp}, ok
//  3. record exists + now > record.exp -> evict, TokenExpired
//  4. record.used >= record.limit      -> LimitExhausted
//  5. otherwise                        -> used++, ok
//
// limit and exp are fixed at first observation of a trace; later Consume
// calls for the same trace must not mutate them even if called with
// different values. Implementations must make steps 3-5 a single atomic
// critical section per trace: two concurrent Consume calls on the same
// trace with limit=1 must yield exactly one ok and one LimitExhausted.
type UsageStore interface {
	Consume(ctx context.Context, trace string, limit int, exp int64, now int64) error
}
