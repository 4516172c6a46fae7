package utils

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WriteMarkdown writes content to dir/fileName, creating dir if needed, and
// returns the full path.
func WriteMarkdown(dir, fileName, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, SafeFileName(fileName))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", path, err)
	}
	slog.Debug("markdown written", "path", path)
	return path, nil
}

// SafeFileName replaces path separators and other unsafe runs with "_".
func SafeFileName(name string) string {
	name = unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "untitled.md"
	}
	return name
}
