package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var defaultImageExts = []string{"jpg", "jpeg", "png", "webp"}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile checks the file extension against exts, or against the common
// image types when exts is empty
func IsImageFile(filename string, exts ...string) bool {
	if len(exts) == 0 {
		exts = defaultImageExts
	}
	ext := extension(filename)
	if ext == "" {
		return false
	}
	for _, want := range exts {
		if strings.EqualFold(ext, strings.TrimPrefix(want, ".")) {
			return true
		}
	}
	return false
}

// ListImageFiles lists the prescription images under dir, including
// subdirectories, sorted by path
func ListImageFiles(dir string, exts ...string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path, exts...) {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// FileExists reports whether path exists and is not a directory
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirExists reports whether path is an existing directory
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

var unsafeChars = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeFilename makes an uploaded or derived name safe to use as a single
// path element
func SanitizeFilename(name string) string {
	return strings.Trim(unsafeChars.Replace(name), " .")
}

// FormatFileSize renders a byte count for upload limit messages, e.g. "20.0 MB"
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	const units = "KMGTPE"
	value := float64(size)
	i := -1
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %cB", value, units[i])
}
