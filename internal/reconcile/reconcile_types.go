package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/openmined/syftsync/internal/syncsdk"
)

// DefaultTrackedFiles is the closed set of per-project files kept in sync
var DefaultTrackedFiles = []string{
	"notes.json",
	"context.md",
	"decisions.md",
	"summary.md",
}

const backupSuffix = ".bak"

type Direction string

const (
	DirectionPull Direction = "pull"
	DirectionPush Direction = "push"
)

// Remote is the coordinator file API the reconciler talks to
type Remote interface {
	ListFiles(ctx context.Context, projectID string) ([]syncsdk.FileInfo, error)
	GetFile(ctx context.Context, projectID, name string) (*syncsdk.FileContent, error)
	PutFile(ctx context.Context, projectID, clientID, name string, content []byte) (*syncsdk.PutFileResponse, error)
}

// Transfer is one file moved during a pass
type Transfer struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type Result struct {
	Direction Direction  `json:"direction"`
	Files     []Transfer `json:"files"`

	// local files left unsent because they are not valid UTF-8
	Skipped []string `json:"skipped,omitempty"`
}

func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		names = append(names, f.Name)
	}
	return names
}

// WriteError is a local filesystem failure while reading or writing a tracked file
type WriteError struct {
	Name string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
