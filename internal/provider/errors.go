package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQuotaExhausted marks a generation failure caused by rate or quota
// limits. The orchestrator retries these after rotating credentials.
var ErrQuotaExhausted = errors.New("provider quota exhausted")

// ErrNoProvider is returned when no generation backend is configured or
// reachable.
var ErrNoProvider = errors.New("no generation provider available")

// StatusError is a non-200 response from a provider endpoint.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsQuota reports whether err indicates quota or rate-limit exhaustion,
// either as the sentinel, a 429 status, or a provider message mentioning
// quota pressure.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 429 {
		return true
	}
	return IsQuotaMessage(err.Error())
}

// IsQuotaMessage reports whether a provider error message indicates quota
// pressure. Used where only the message survives, such as stream chunks.
func IsQuotaMessage(message string) bool {
	msg := strings.ToLower(message)
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "rate limit")
}
