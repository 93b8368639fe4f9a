package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"tinct/internal/logging"
	"tinct/internal/services"
)

// Resolver merges built-in defaults, a loaded default section, and
// per-image overrides into the effective Settings for each item.
type Resolver struct {
	mu        sync.RWMutex
	defaults  Settings
	overrides map[string]map[string]any
	logger    *slog.Logger
}

// NewResolver builds a resolver seeded with the given defaults.
func NewResolver(defaults Settings, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		defaults:  defaults,
		overrides: make(map[string]map[string]any),
		logger:    logger,
	}
}

// Defaults returns the current default settings.
func (r *Resolver) Defaults() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// SetDefaults replaces the default settings, e.g. after a rejected preview.
func (r *Resolver) SetDefaults(defaults Settings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = defaults
}

// LoadFile reads a JSON settings file and loads it. A missing or unreadable
// file is a configuration error; bad values inside a readable file are not.
func (r *Resolver) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "settings", "read file", path, err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return services.Wrap(services.ErrConfiguration, "settings", "parse file", path, err)
	}
	return r.Load(raw)
}

// Load applies a parsed settings document. The document must be an object
// with optional "default" and "images" sections; unknown top-level keys are
// ignored. Bad field values inside either section are replaced with
// built-in defaults and logged, never returned as errors.
func (r *Resolver) Load(raw map[string]any) error {
	if raw == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if value, ok := raw["default"]; ok {
		section, ok := value.(map[string]any)
		if !ok {
			r.logger.Warn("settings 'default' section is not an object; ignoring",
				logging.String("got", fmt.Sprintf("%T", value)))
		} else {
			sanitized := sanitize(section, "default", r.logger)
			r.defaults = apply(r.defaults, sanitized)
		}
	}

	if value, ok := raw["images"]; ok {
		section, ok := value.(map[string]any)
		if !ok {
			r.logger.Warn("settings 'images' section is not an object; ignoring",
				logging.String("got", fmt.Sprintf("%T", value)))
			return nil
		}
		for name, entry := range section {
			override, ok := entry.(map[string]any)
			if !ok {
				r.logger.Warn("per-image settings entry is not an object; skipping",
					logging.String("image", name),
					logging.String("got", fmt.Sprintf("%T", entry)))
				continue
			}
			r.overrides[name] = sanitize(override, "image "+name, r.logger)
		}
	}
	return nil
}

// Resolve returns the defaults with the matching per-image override applied
// on top. The override is looked up by the exact key first, then by the
// path's basename. Override fields replace default fields wholesale.
func (r *Resolver) Resolve(key string) Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()

	override, ok := r.overrides[key]
	if !ok {
		override, ok = r.overrides[filepath.Base(key)]
	}
	if !ok {
		return r.defaults
	}
	return apply(r.defaults, override)
}

// Apply merges a raw override map onto base, field by field. Unknown
// keys are ignored and list-valued fields are replaced wholesale.
func Apply(base Settings, override map[string]any) Settings {
	return apply(base, override)
}

// OverrideCount reports the number of loaded per-image overrides.
func (r *Resolver) OverrideCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.overrides)
}

// sanitize validates each supplied field, replacing wrong-typed or
// out-of-range values with built-in defaults. Only reference image entries
// are dropped individually; every other replacement is whole-field.
// Sanitizing an already-valid map returns it unchanged.
func sanitize(section map[string]any, context string, logger *slog.Logger) map[string]any {
	defaults := Defaults()
	sanitized := make(map[string]any, len(section))

	warn := func(field string, fallback any, reason string) {
		logger.Warn("replacing invalid settings field",
			logging.String("context", context),
			logging.String("field", field),
			logging.String("reason", reason),
			logging.Any("fallback", fallback))
	}

	for key, value := range section {
		switch key {
		case FieldStyle:
			s, ok := value.(string)
			if !ok || !validStyle(s) {
				warn(key, defaults.Style, fmt.Sprintf("want one of %v", Styles()))
				sanitized[key] = defaults.Style
			} else {
				sanitized[key] = s
			}
		case FieldSeed:
			n, ok := toInt(value)
			if !ok || n < 0 {
				warn(key, defaults.Seed, "want integer >= 0")
				sanitized[key] = defaults.Seed
			} else {
				sanitized[key] = n
			}
		case FieldInferenceSteps:
			n, ok := toInt(value)
			if !ok || n < 1 {
				warn(key, defaults.InferenceSteps, "want integer >= 1")
				sanitized[key] = defaults.InferenceSteps
			} else {
				sanitized[key] = n
			}
		case FieldTopK:
			n, ok := toInt(value)
			if !ok || n < 1 {
				warn(key, defaults.TopK, "want integer >= 1")
				sanitized[key] = defaults.TopK
			} else {
				sanitized[key] = n
			}
		case FieldMaxConcurrent:
			n, ok := toInt(value)
			if !ok || n < 1 {
				warn(key, defaults.MaxConcurrent, "want integer >= 1")
				sanitized[key] = defaults.MaxConcurrent
			} else {
				sanitized[key] = n
			}
		case FieldRecursive, FieldOverwrite, FieldPreviewMode:
			b, ok := value.(bool)
			if !ok {
				warn(key, false, "want boolean")
				sanitized[key] = false
			} else {
				sanitized[key] = b
			}
		case FieldReferenceImages:
			list, ok := value.([]any)
			if !ok {
				if refs, isStrings := value.([]string); isStrings {
					sanitized[key] = refs
					continue
				}
				warn(key, nil, "want list of strings")
				continue
			}
			refs := make([]string, 0, len(list))
			for _, item := range list {
				ref, ok := item.(string)
				if !ok {
					logger.Warn("dropping non-string reference image entry",
						logging.String("context", context),
						logging.String("got", fmt.Sprintf("%T", item)))
					continue
				}
				refs = append(refs, ref)
			}
			if len(refs) > 0 {
				sanitized[key] = refs
			} else {
				warn(key, nil, "no valid reference image entries")
			}
		default:
			// Unknown fields are carried through untouched.
			sanitized[key] = value
		}
	}
	return sanitized
}

// apply shallow-merges a sanitized override onto base. List-valued fields
// are replaced, not concatenated.
func apply(base Settings, override map[string]any) Settings {
	merged := base
	for key, value := range override {
		switch key {
		case FieldStyle:
			if s, ok := value.(string); ok {
				merged.Style = s
			}
		case FieldSeed:
			if n, ok := toInt(value); ok {
				merged.Seed = n
			}
		case FieldInferenceSteps:
			if n, ok := toInt(value); ok {
				merged.InferenceSteps = n
			}
		case FieldTopK:
			if n, ok := toInt(value); ok {
				merged.TopK = n
			}
		case FieldMaxConcurrent:
			if n, ok := toInt(value); ok {
				merged.MaxConcurrent = n
			}
		case FieldRecursive:
			if b, ok := value.(bool); ok {
				merged.Recursive = b
			}
		case FieldOverwrite:
			if b, ok := value.(bool); ok {
				merged.Overwrite = b
			}
		case FieldPreviewMode:
			if b, ok := value.(bool); ok {
				merged.PreviewMode = b
			}
		case FieldReferenceImages:
			switch refs := value.(type) {
			case []string:
				merged.ReferenceImages = refs
			case []any:
				out := make([]string, 0, len(refs))
				for _, item := range refs {
					if s, ok := item.(string); ok {
						out = append(out, s)
					}
				}
				merged.ReferenceImages = out
			}
		}
	}
	return merged
}
