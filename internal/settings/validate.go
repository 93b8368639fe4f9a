package settings

import (
	"fmt"
	"strings"

	"tinct/internal/services"
)

// ValidateStrict checks every supplied field and reports all violations in
// a single configuration error, unlike the sanitizing load path which
// silently repairs them. Intended for top-level batch configuration, where
// misconfiguration must fail before any work starts.
func ValidateStrict(section map[string]any) error {
	var violations []string

	if value, ok := section[FieldStyle]; ok {
		if s, isString := value.(string); !isString {
			violations = append(violations, fmt.Sprintf("%s must be a string, got %T", FieldStyle, value))
		} else if !validStyle(s) {
			violations = append(violations, fmt.Sprintf("%s must be one of %v, got %q", FieldStyle, Styles(), s))
		}
	}

	intFields := []struct {
		name string
		min  int
	}{
		{FieldSeed, 0},
		{FieldInferenceSteps, 1},
		{FieldTopK, 1},
		{FieldMaxConcurrent, 1},
	}
	for _, field := range intFields {
		value, ok := section[field.name]
		if !ok {
			continue
		}
		n, isInt := toInt(value)
		if !isInt {
			violations = append(violations, fmt.Sprintf("%s must be an integer, got %T", field.name, value))
			continue
		}
		if n < field.min {
			violations = append(violations, fmt.Sprintf("%s must be at least %d, got %d", field.name, field.min, n))
		}
	}

	for _, field := range []string{FieldRecursive, FieldOverwrite, FieldPreviewMode} {
		if value, ok := section[field]; ok {
			if _, isBool := value.(bool); !isBool {
				violations = append(violations, fmt.Sprintf("%s must be a boolean, got %T", field, value))
			}
		}
	}

	if value, ok := section[FieldReferenceImages]; ok {
		switch refs := value.(type) {
		case []string:
		case []any:
			for i, item := range refs {
				if _, isString := item.(string); !isString {
					violations = append(violations, fmt.Sprintf("%s[%d] must be a string path, got %T", FieldReferenceImages, i, item))
				}
			}
		default:
			violations = append(violations, fmt.Sprintf("%s must be a list of strings, got %T", FieldReferenceImages, value))
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "settings", "validate",
		strings.Join(violations, "; "), nil)
}

// StrictMap converts Settings into the wire-field map ValidateStrict
// understands, so struct-held configuration can share the same checks.
func StrictMap(s Settings) map[string]any {
	m := map[string]any{
		FieldStyle:          s.Style,
		FieldSeed:           s.Seed,
		FieldInferenceSteps: s.InferenceSteps,
		FieldTopK:           s.TopK,
		FieldRecursive:      s.Recursive,
		FieldOverwrite:      s.Overwrite,
		FieldPreviewMode:    s.PreviewMode,
		FieldMaxConcurrent:  s.MaxConcurrent,
	}
	if s.ReferenceImages != nil {
		m[FieldReferenceImages] = s.ReferenceImages
	}
	return m
}
