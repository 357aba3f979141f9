package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrResumeNotFound reports that a resume file key resolved to nothing.
var ErrResumeNotFound = errors.New("resume file not found")

// ResumeStore resolves resume file keys to local paths the browser can
// upload. It is strictly read-only: the pipeline never writes resumes.
type ResumeStore struct {
	dir string
}

// NewResumeStore creates a store rooted at dir.
func NewResumeStore(dir string) *ResumeStore {
	return &ResumeStore{dir: dir}
}

// Resolve maps a file key to an absolute path, rejecting keys that
// escape the store root.
func (r *ResumeStore) Resolve(fileKey string) (string, error) {
	if fileKey == "" {
		return "", fmt.Errorf("%w: empty file key", ErrResumeNotFound)
	}

	cleaned := filepath.Clean(fileKey)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid resume file key %q", fileKey)
	}

	path := filepath.Join(r.dir, cleaned)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrResumeNotFound, fileKey)
		}
		return "", fmt.Errorf("failed to stat resume %q: %w", fileKey, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("invalid resume file key %q: is a directory", fileKey)
	}
	return path, nil
}
