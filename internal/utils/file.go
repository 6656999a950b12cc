package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExts = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
}

// GetFileExtension returns the lowercase file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has a decodable image extension
func IsImageFile(filename string) bool {
	_, ok := imageExts[GetFileExtension(filename)]
	return ok
}

// IsURL reports whether source should be downloaded instead of opened
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// ListImageFiles recursively lists all image files in a directory, sorted
func ListImageFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// ExpandSources turns CLI inputs into a flat list of images. URLs and files
// pass through, directories are walked.
func ExpandSources(inputs []string) ([]string, error) {
	var out []string
	for _, in := range inputs {
		if IsURL(in) {
			out = append(out, in)
			continue
		}
		if DirExists(in) {
			files, err := ListImageFiles(in)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", in, err)
			}
			if len(files) == 0 {
				return nil, fmt.Errorf("no image files in %s", in)
			}
			out = append(out, files...)
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// FileExists checks if a regular file exists
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FormatFileSize formats a byte count in human-readable form
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
