// Package render holds the pieces shared by every format writer: slug and
// filename helpers plus atomic output-directory handling.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const maxSlugLen = 60

// Slug turns a title into a lowercase filename-safe fragment.
func Slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "item"
	}
	return slug
}

// ItemFileName builds the "NNN-slug.ext" name used by the page formats.
func ItemFileName(n int, title, ext string) string {
	return fmt.Sprintf("%03d-%s%s", n, Slug(title), ext)
}

// FormatDate renders a timestamp for display, or "undated" when absent.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "undated"
	}
	return t.UTC().Format("2006-01-02 15:04 MST")
}

// BuildDir runs build against a temporary directory and renames it into
// place as <runDir>/<name> only if build succeeds, so a failed render never
// leaves a half-written output directory. An existing directory from a
// previous run of the same day is replaced.
func BuildDir(runDir, name string, build func(dir string) error) (string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	tmp, err := os.MkdirTemp(runDir, "."+name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := build(tmp); err != nil {
		return "", err
	}

	final := filepath.Join(runDir, name)
	if err := os.RemoveAll(final); err != nil {
		return "", fmt.Errorf("clear old output: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("move output into place: %w", err)
	}
	return final, nil
}

// WriteFileAtomic writes data to path via a temp file and rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
