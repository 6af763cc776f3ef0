package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConfigurationError reports an unknown provider name or asset mapping.
// It is never retried.
type ConfigurationError struct {
	Capability Capability
	Name       string
	Available  []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Available) > 0 {
		return fmt.Sprintf("%s provider %q not registered (available: %s)",
			e.Capability, e.Name, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("%s provider %q not registered", e.Capability, e.Name)
}

// ServiceUnavailableError is the only failure the factory and executor
// surface upward: provider initialization failed or the retry budget was
// exhausted. It wraps the last underlying error.
type ServiceUnavailableError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("%s: %s unavailable: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// ErrorClass is the closed failure taxonomy the executor switches on.
// Providers assign the class at their own call boundary, where they know
// the underlying SDK's error shapes.
type ErrorClass int

const (
	// ClassRetryable marks transient failures worth another attempt.
	ClassRetryable ErrorClass = iota
	// ClassPermanent marks failures that retrying cannot fix.
	ClassPermanent
	// ClassTimeout marks a per-attempt deadline expiry. It consumes retry
	// budget and backs off exactly like a retryable failure.
	ClassTimeout
)

func (c ErrorClass) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassPermanent:
		return "permanent"
	case ClassTimeout:
		return "timeout"
	}
	return "unknown"
}

// ClassifiedError carries an ErrorClass tag alongside the original error.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classified tags err with the given class. A nil err returns nil.
func Classified(class ErrorClass, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Err: err}
}

// Legacy substring markers, kept as a fallback for errors that reach the
// executor untagged (e.g. raw SDK errors from older provider code). The
// deny list is checked first.
var permanentMarkers = []string{
	"validation", "invalid", "unauthorized", "forbidden", "not found",
	"insufficient funds", "insufficient balance", "401", "403", "404",
}

var retryableMarkers = []string{
	"timeout", "connection", "network", "temporarily", "rate limit",
	"too many requests", "service unavailable", "bad gateway",
	"gateway timeout", "internal server error", "502", "503", "504",
}

// Classify resolves the error class for err. Tagged errors win; untagged
// errors fall back to matching the type name and message text, and
// finally to the connectivity/timeout nature of the error itself.
func Classify(err error) ErrorClass {
	var tagged *ClassifiedError
	if errors.As(err, &tagged) {
		return tagged.Class
	}

	haystack := strings.ToLower(fmt.Sprintf("%T: %s", err, err.Error()))
	for _, marker := range permanentMarkers {
		if strings.Contains(haystack, marker) {
			return ClassPermanent
		}
	}
	for _, marker := range retryableMarkers {
		if strings.Contains(haystack, marker) {
			return ClassRetryable
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassRetryable
	}
	return ClassPermanent
}
