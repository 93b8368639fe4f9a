// Package files validates input images, discovers them on disk, and
// derives collision-free output paths for colorized results.
package files
