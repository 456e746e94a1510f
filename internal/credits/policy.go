package credits

import (
	"fmt"
	"strings"
)

// ExhaustionPolicy decides how callers report an exhausted ledger.
type ExhaustionPolicy string

const (
	// PolicyRetry reports exhaustion as transient; a later replenishment makes the call succeed.
	PolicyRetry    ExhaustionPolicy = "retry"
	PolicyHardStop ExhaustionPolicy = "hard_stop"
)

// ParsePolicy reads CREDITS_EXHAUSTED_POLICY; empty means retry.
func ParsePolicy(s string) (ExhaustionPolicy, error) {
	switch ExhaustionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyRetry:
		return PolicyRetry, nil
	case PolicyHardStop, "hard-stop", "hardstop":
		return PolicyHardStop, nil
	}
	return "", fmt.Errorf("unknown credits exhaustion policy %q", s)
}

// Retryable reports whether exhaustion is presented as temporary.
func (p ExhaustionPolicy) Retryable() bool { return p != PolicyHardStop }
