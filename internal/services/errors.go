package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrTransientBackend marks temporary provider or store faults that are
	// safe to retry.
	ErrTransientBackend = errors.New("transient backend error")
	// ErrProviderRejected marks requests an external provider refused
	// deterministically; retrying the same input cannot succeed.
	ErrProviderRejected = errors.New("provider rejected request")
	// ErrValidationFailed marks output that failed a quality gate. Never
	// retried automatically.
	ErrValidationFailed = errors.New("validation failed")
	// ErrPublishRejected marks uploads the platform refused after processing.
	ErrPublishRejected = errors.New("publish rejected")
	// ErrTimeout marks operations that exceeded their allotted time.
	ErrTimeout = errors.New("timeout")
	// ErrAbandoned marks jobs reclaimed after their processing window lapsed.
	ErrAbandoned = errors.New("job abandoned")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing rows, files, or remote resources.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransientBackend
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an arbitrary error onto the sentinel taxonomy. Errors already
// carrying a marker keep it; context deadlines and network timeouts become
// ErrTimeout and ErrTransientBackend respectively. Unmarked errors default to
// ErrTransientBackend so a bounded retry gets one chance before the job fails.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrProviderRejected):
		return ErrProviderRejected
	case errors.Is(err, ErrValidationFailed):
		return ErrValidationFailed
	case errors.Is(err, ErrPublishRejected):
		return ErrPublishRejected
	case errors.Is(err, ErrAbandoned):
		return ErrAbandoned
	case errors.Is(err, ErrConfiguration):
		return ErrConfiguration
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, ErrTransientBackend):
		return ErrTransientBackend
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout
		}
		return ErrTransientBackend
	}
}

// IsRetryable reports whether a stage error should be retried within its
// budget. Only transient backend faults and timeouts qualify.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	marker := Classify(err)
	return errors.Is(marker, ErrTransientBackend) || errors.Is(marker, ErrTimeout)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
