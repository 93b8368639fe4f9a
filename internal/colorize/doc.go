// Package colorize turns line art into colored images. It prepares
// inputs, invokes a colorizer backend, and writes verified results.
package colorize
