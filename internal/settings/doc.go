// Package settings resolves per-image colorization settings.
//
// A settings file is a JSON object with an optional "default" section and
// an optional "images" section keyed by filename or path. The two layers
// are validated differently on purpose: file-loaded sections are sanitized
// field by field, replacing bad values with built-in defaults so a mangled
// file degrades instead of aborting a batch, while ValidateStrict collects
// every violation for batch construction, where misconfiguration must fail
// loudly before any work starts.
package settings
