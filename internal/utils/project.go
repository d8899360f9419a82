package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9._-]+`)

const projectNameMaxLen = 48

// ProjectIDFromDir derives a stable project id from a working directory:
// the sanitized directory name plus a short hash of its absolute path, so two
// checkouts named the same in different places do not collide.
func ProjectIDFromDir(dir string) (string, error) {
	absPath, err := ResolvePath(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}

	name := strings.ToLower(filepath.Base(absPath))
	name = projectNameInvalid.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if len(name) > projectNameMaxLen {
		name = strings.TrimRight(name[:projectNameMaxLen], "-.")
	}
	if name == "" {
		name = "project"
	}

	sum := sha256.Sum256([]byte(absPath))
	return name + "-" + hex.EncodeToString(sum[:])[:8], nil
}

var projectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// IsValidProjectID reports whether id is safe to use as a path segment and URL param
func IsValidProjectID(id string) bool {
	return projectIDPattern.MatchString(id) && !strings.Contains(id, "..")
}
