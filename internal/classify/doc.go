// Package classify labels input images as line art or colored
// artwork using cheap pixel statistics, so the batch pipeline can
// warn when an input is unlikely to colorize well.
package classify
