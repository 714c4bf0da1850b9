// File: capability.go

package ekeytoken

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultLimit is the number of admissible consumptions when a
	// Capability does not specify one.
	DefaultLimit = 1

	// MinLimit and MaxLimit bound Capability.Limit.
	MinLimit = 1
	MaxLimit = 10
)

// actionPattern matches "METHOD:/path": an uppercase-ASCII method, a colon,
// and a path beginning with '/' containing no whitespace. The method and
// path portions must both be non-empty; only the first colon delimits them,
// so the path itself may contain further colons.
var actionPattern = regexp.MustCompile(`^[A-Z]+:/\S*$`)

// Capability describes what an E-Key authorizes: a single HTTP action,
// an optional human-readable scope label, a consumption limit, and an
// opaque, verbatim-carried subcap list.
type Capability struct {
	// Action is "METHOD:/path", e.g. "POST:/payments".
	Action string `json:"action"`

	// Scope is an opaque human label, never interpreted by the Verifier.
	Scope string `json:"scope,omitempty"`

	// Limit is the number of admissible consumptions of the token, in
	// [MinLimit, MaxLimit]. Zero means DefaultLimit.
	Limit int `json:"limit,omitempty"`

	// Subcap is carried verbatim; the Verifier never interprets it.
	Subcap []string `json:"subcap,omitempty"`
}

// EffectiveLimit returns Limit, or DefaultLimit if Limit is zero.
func (c Capability) EffectiveLimit() int {
	if c.Limit == 0 {
		return DefaultLimit
	}
	return c.Limit
}

// Validate checks the Capability's invariants: Action must parse as
// "METHOD:/path" with non-empty method and path, and Limit (after
// defaulting) must fall within [MinLimit, MaxLimit].
func (c Capability) Validate() error {
	if _, _, err := ParseAction(c.Action); err != nil {
		return err
	}
	limit := c.EffectiveLimit()
	if limit < MinLimit || limit > MaxLimit {
		return fmt.Errorf("cap.limit %d out of range [%d,%d]", limit, MinLimit, MaxLimit)
	}
	return nil
}

// ParseAction splits "METHOD:/path" on its first ':' and validates both
// halves. The path half is returned including its leading '/' and may
// itself contain ':' characters.
func ParseAction(action string) (method, path string, err error) {
	if !actionPattern.MatchString(action) {
		return "", "", fmt.Errorf("cap.action %q does not match METHOD:/path", action)
	}
	idx := strings.IndexByte(action, ':')
	return action[:idx], action[idx+1:], nil
}
