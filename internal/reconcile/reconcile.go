// Package reconcile moves tracked project files between the local data dir and the
// coordinator, one direction per pass, newest timestamp wins.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/openmined/syftsync/internal/syncsdk"
	"github.com/openmined/syftsync/internal/utils"
)

const filePerm = 0o644

type Reconciler struct {
	remote  Remote
	dataDir string
	tracked mapset.Set[string]
}

// New creates a reconciler for files under <dataDir>/projects/<projectId>.
// An empty tracked list falls back to DefaultTrackedFiles.
func New(remote Remote, dataDir string, tracked []string) *Reconciler {
	if len(tracked) == 0 {
		tracked = DefaultTrackedFiles
	}
	return &Reconciler{
		remote:  remote,
		dataDir: dataDir,
		tracked: mapset.NewSet(tracked...),
	}
}

func (r *Reconciler) ProjectDir(projectID string) string {
	return filepath.Join(r.dataDir, "projects", projectID)
}

func (r *Reconciler) IsTracked(name string) bool {
	return r.tracked.Contains(name)
}

// TrackedFiles returns the tracked names in a stable order
func (r *Reconciler) TrackedFiles() []string {
	names := r.tracked.ToSlice()
	slices.Sort(names)
	return names
}

// Pull downloads every tracked file whose remote copy is strictly newer than the local one.
// Files missing remotely are left alone. On error the transfers completed so far are still returned.
func (r *Reconciler) Pull(ctx context.Context, projectID string) (*Result, error) {
	res := &Result{Direction: DirectionPull, Files: []Transfer{}}

	remote, err := r.remoteIndex(ctx, projectID)
	if err != nil {
		return res, err
	}

	dir := r.ProjectDir(projectID)
	for _, name := range r.TrackedFiles() {
		info, ok := remote[name]
		if !ok {
			continue
		}

		localPath := filepath.Join(dir, name)
		localMod, exists, err := modTime(localPath)
		if err != nil {
			return res, &WriteError{Name: name, Op: "stat", Err: err}
		}
		if exists && !info.ModifiedAt.After(localMod) {
			slog.Debug("sync", "op", DirectionPull, "status", "Skipped", "path", name, "local", localMod, "remote", info.ModifiedAt)
			continue
		}

		file, err := r.remote.GetFile(ctx, projectID, name)
		if errors.Is(err, syncsdk.ErrFileNotFound) {
			slog.Warn("sync", "op", DirectionPull, "status", "Ignored", "path", name, "error", err)
			continue
		} else if err != nil {
			return res, err
		}

		content := []byte(file.Content)
		if err := writeLocal(localPath, content, file.ModifiedAt, exists); err != nil {
			return res, &WriteError{Name: name, Op: "write", Err: err}
		}

		res.Files = append(res.Files, Transfer{Name: name, Size: int64(len(content)), ModifiedAt: file.ModifiedAt})
		slog.Info("sync", "op", DirectionPull, "status", "Completed", "path", name, "size", humanize.Bytes(uint64(len(content))))
	}

	return res, nil
}

// Push uploads every tracked local file that is strictly newer than the remote copy.
// A file the coordinator does not have counts as infinitely old there.
// After each upload the local mtime is set to the coordinator's modifiedAt.
func (r *Reconciler) Push(ctx context.Context, projectID, clientID string) (*Result, error) {
	res := &Result{Direction: DirectionPush, Files: []Transfer{}}

	remote, err := r.remoteIndex(ctx, projectID)
	if err != nil {
		return res, err
	}

	dir := r.ProjectDir(projectID)
	for _, name := range r.TrackedFiles() {
		localPath := filepath.Join(dir, name)
		localMod, exists, err := modTime(localPath)
		if err != nil {
			return res, &WriteError{Name: name, Op: "stat", Err: err}
		}
		if !exists {
			continue
		}

		// zero time is older than any mtime
		remoteMod := remote[name].ModifiedAt
		if !localMod.After(remoteMod) {
			slog.Debug("sync", "op", DirectionPush, "status", "Skipped", "path", name, "local", localMod, "remote", remoteMod)
			continue
		}

		content, err := os.ReadFile(localPath)
		if err != nil {
			return res, &WriteError{Name: name, Op: "read", Err: err}
		}

		// mtime stays untouched so the file is picked up again once fixed
		if !utf8.Valid(content) {
			res.Skipped = append(res.Skipped, name)
			slog.Warn("sync", "op", DirectionPush, "status", "Rejected", "path", name, "error", syncsdk.ErrInvalidContent)
			continue
		}

		put, err := r.remote.PutFile(ctx, projectID, clientID, name, content)
		if err != nil {
			return res, err
		}

		if err := os.Chtimes(localPath, put.ModifiedAt, put.ModifiedAt); err != nil {
			return res, &WriteError{Name: name, Op: "chtimes", Err: err}
		}

		res.Files = append(res.Files, Transfer{Name: name, Size: int64(len(content)), ModifiedAt: put.ModifiedAt})
		slog.Info("sync", "op", DirectionPush, "status", "Completed", "path", name, "size", humanize.Bytes(uint64(len(content))))
	}

	return res, nil
}

// remoteIndex lists the coordinator's files once per pass, keeping tracked names only
func (r *Reconciler) remoteIndex(ctx context.Context, projectID string) (map[string]syncsdk.FileInfo, error) {
	files, err := r.remote.ListFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list remote files: %w", err)
	}

	index := make(map[string]syncsdk.FileInfo, len(files))
	for _, f := range files {
		if r.tracked.Contains(f.Name) {
			index[f.Name] = f
		}
	}
	return index, nil
}

func writeLocal(path string, content []byte, modifiedAt time.Time, backup bool) error {
	if backup {
		if err := utils.CopyFile(path, path+backupSuffix); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	if err := utils.WriteFileAtomic(path, content, filePerm); err != nil {
		return err
	}
	return os.Chtimes(path, modifiedAt, modifiedAt)
}

func modTime(path string) (time.Time, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	} else if err != nil {
		return time.Time{}, false, err
	}
	if info.IsDir() {
		return time.Time{}, false, fmt.Errorf("%s is a directory", path)
	}
	return info.ModTime(), true, nil
}
