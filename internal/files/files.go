package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tinct/internal/services"
)

// OutputSuffix is appended to input file names when deriving output paths.
const OutputSuffix = "_colorized"

// collisionLimit caps the numbered-rename search for occupied output paths.
const collisionLimit = 10000

var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// SupportedExtensions returns the accepted image extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupportedImage reports whether path has a supported image extension.
func IsSupportedImage(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// ValidateImageFile checks that path names a readable, non-empty regular
// file with a supported image extension. All failures carry the
// validation marker.
func ValidateImageFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrValidation, "files", "validate", fmt.Sprintf("file does not exist: %s", path), nil)
		}
		return services.Wrap(services.ErrValidation, "files", "validate", fmt.Sprintf("cannot stat %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return services.Wrap(services.ErrValidation, "files", "validate", fmt.Sprintf("not a regular file: %s", path), nil)
	}
	if !IsSupportedImage(path) {
		return services.Wrap(services.ErrValidation, "files", "validate",
			fmt.Sprintf("unsupported format %q (supported: %s)", filepath.Ext(path), strings.Join(SupportedExtensions(), ", ")), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, "files", "validate", fmt.Sprintf("file is empty: %s", path), nil)
	}
	file, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "files", "validate", fmt.Sprintf("file is not readable: %s", path), err)
	}
	file.Close()
	return nil
}

// ScanDirectory returns the valid image files under dir, sorted by
// path. With recursive set it descends into subdirectories; otherwise
// only direct children are considered. Invalid entries are skipped.
func ScanDirectory(dir string, recursive bool) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "files", "scan", fmt.Sprintf("directory does not exist: %s", dir), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "files", "scan", fmt.Sprintf("not a directory: %s", dir), nil)
	}

	var paths []string
	if recursive {
		err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if ValidateImageFile(path) == nil {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "files", "scan", fmt.Sprintf("walking %s", dir), err)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "files", "scan", fmt.Sprintf("reading %s", dir), err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if ValidateImageFile(path) == nil {
				paths = append(paths, path)
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// CreateOutputPath derives the destination for a colorized image. The
// result lives in outputDir, keeps the input's extension, and carries
// the colorized suffix: art.png becomes art_colorized.png.
func CreateOutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, stem+OutputSuffix+ext)
}

// ResolveCollision returns a path that will not clobber an existing
// file. When overwrite is set, path is returned as is. Otherwise an
// occupied path gains a numeric suffix: art_colorized.png becomes
// art_colorized_1.png, then _2, and so on.
func ResolveCollision(path string, overwrite bool) (string, error) {
	if overwrite {
		return path, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; i <= collisionLimit; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "files", "resolve collision",
		fmt.Sprintf("no available name for %s after %d attempts", path, collisionLimit), nil)
}
