package settings

import "encoding/json"

// Field names as they appear in the JSON settings file.
const (
	FieldStyle           = "style"
	FieldSeed            = "seed"
	FieldInferenceSteps  = "numInferenceSteps"
	FieldTopK            = "topK"
	FieldRecursive       = "recursive"
	FieldOverwrite       = "overwrite"
	FieldPreviewMode     = "previewMode"
	FieldMaxConcurrent   = "maxConcurrent"
	FieldReferenceImages = "referenceImages"
)

// Style modes accepted by the line extraction step.
const (
	StyleLine       = "line"
	StyleLineShadow = "line + shadow"
)

// Styles lists the accepted style modes.
func Styles() []string {
	return []string{StyleLine, StyleLineShadow}
}

// Settings holds the resolved colorization parameters for one image.
type Settings struct {
	Style           string
	Seed            int
	InferenceSteps  int
	TopK            int
	Recursive       bool
	Overwrite       bool
	PreviewMode     bool
	MaxConcurrent   int
	ReferenceImages []string
}

// Defaults returns the built-in parameter defaults.
func Defaults() Settings {
	return Settings{
		Style:          StyleLineShadow,
		Seed:           0,
		InferenceSteps: 10,
		TopK:           3,
		MaxConcurrent:  1,
	}
}

func validStyle(value string) bool {
	return value == StyleLine || value == StyleLineShadow
}

// toInt normalizes the numeric representations a JSON decoder may produce.
// Non-integral floats are rejected.
func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		n := int(v)
		if float64(n) != v {
			return 0, false
		}
		return n, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}
