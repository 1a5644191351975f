package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeName = regexp.MustCompile(`[^\w.-]+`)

// SafeFileName replaces anything outside [A-Za-z0-9_.-] with underscores
func SafeFileName(name string) string {
	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// SaveUpload writes one uploaded file under dir/<jobID>/ and returns its path
func SaveUpload(dir, jobID string, index int, name string, data []byte) (string, error) {
	jobDir := filepath.Join(dir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(jobDir, fmt.Sprintf("%03d_%s", index, SafeFileName(name)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}
