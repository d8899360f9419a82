// Package identity issues the stable per-machine client id used as the lease holder name.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/openmined/syftsync/internal/utils"
)

const (
	FileName     = "client_id"
	lockFileName = "client_id.lock"
	maxLabelLen  = 32
	maxIDLen     = 128
	suffixLen    = 8
	fallbackHost = "host"
	machineIDApp = "syftsync"
)

var (
	nonLabelChars = regexp.MustCompile(`[^a-z0-9-]+`)
	validID       = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// GetClientID returns the id persisted under basePath, creating it on first use.
// If the id cannot be persisted it is still returned and used for this process.
func GetClientID(basePath string) string {
	if id, err := readID(basePath); err == nil {
		return id
	}

	generated := NewClientID()
	id, err := persist(basePath, generated)
	if err != nil {
		slog.Warn("client id not persisted", "path", basePath, "id", generated, "error", err)
		return generated
	}
	if id != generated {
		slog.Debug("client id created concurrently", "id", id)
	} else {
		slog.Info("client id created", "id", id)
	}
	return id
}

// NewClientID builds `<hostLabel>-<randomSuffix>`
func NewClientID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	return hostLabel() + "-" + suffix
}

func hostLabel() string {
	if name, err := os.Hostname(); err == nil {
		if label := sanitizeLabel(name); label != "" {
			return label
		}
	}
	if id, err := machineid.ProtectedID(machineIDApp); err == nil && len(id) >= suffixLen {
		return fallbackHost + "-" + strings.ToLower(id[:suffixLen])
	}
	return fallbackHost
}

// sanitizeLabel keeps the first dns label, lower cased, restricted to [a-z0-9-]
func sanitizeLabel(hostname string) string {
	label, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(hostname)), ".")
	label = nonLabelChars.ReplaceAllString(label, "-")
	label = strings.Trim(label, "-")
	if len(label) > maxLabelLen {
		label = strings.TrimRight(label[:maxLabelLen], "-")
	}
	return label
}

func readID(basePath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(basePath, FileName))
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" || len(id) > maxIDLen || !validID.MatchString(id) {
		return "", errors.New("invalid client id file")
	}
	return id, nil
}

// persist writes id unless another process got there first, in which case the winner is returned
func persist(basePath, id string) (string, error) {
	if err := utils.EnsureDir(basePath); err != nil {
		return "", fmt.Errorf("create base dir: %w", err)
	}

	fl := flock.New(filepath.Join(basePath, lockFileName))
	if err := fl.Lock(); err != nil {
		return "", fmt.Errorf("lock client id: %w", err)
	}
	defer fl.Unlock()

	if existing, err := readID(basePath); err == nil {
		return existing, nil
	}

	if err := utils.WriteFileAtomic(filepath.Join(basePath, FileName), []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write client id: %w", err)
	}
	return id, nil
}
