package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks intake errors: bad paths, empty batches, and other
	// conditions that prevent an operation from starting at all.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks batch-level configuration problems.
	ErrConfiguration = errors.New("configuration error")
	// ErrResource marks resource-exhaustion failures from the transform
	// collaborator; the controller reacts with an immediate memory reclaim.
	ErrResource = errors.New("resource exhausted")
	// ErrExternal marks generic failures from external collaborators.
	ErrExternal = errors.New("external service error")
)

// Wrap builds an error message that names the stage and operation while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsResource reports whether err carries the resource-exhaustion marker.
func IsResource(err error) bool {
	return errors.Is(err, ErrResource)
}

// IsValidation reports whether err carries the validation marker.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConfiguration reports whether err carries the configuration marker.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
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
