package authority

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnreachable marks transient failures: timeouts, connectivity loss,
	// and server-side errors. Callers retry these within their budgets.
	ErrUnreachable = errors.New("authority unreachable")
	// ErrRejected marks permanent validation rejections. Retrying the same
	// payload cannot succeed, so callers take these out of their retry loops.
	ErrRejected = errors.New("authority rejected document")
)

// Wrap builds an error that includes operation context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrUnreachable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether err represents a recoverable authority failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsRejection reports whether the authority permanently rejected the payload.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRejected)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "request failed"
	}
	return strings.Join(parts, ": ")
}
