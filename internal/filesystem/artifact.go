package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"voice-transcoder/internal/logging"
)

// Artifact prefixes.
const (
	KindInput  = "input"
	KindOutput = "output"
)

// artifactName matches the names staged jobs create: a kind prefix, a
// <unixmillis>-<uuid> job id and the kind's extension. Sweep leaves
// everything else in a shared temp dir alone.
var artifactName = regexp.MustCompile(
	`^(input_[0-9]+-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.pcm|` +
		`output_[0-9]+-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.ogg)$`)

// TempArtifact is a job-owned temporary file path.
type TempArtifact struct {
	kind string
	path string

	once      sync.Once
	removeErr error
}

// NewTempArtifact reserves the path <dir>/<kind>_<id><ext>. The file itself is
// not created; the caller or the encoder writes it.
func NewTempArtifact(dir, kind, id, ext string) (*TempArtifact, error) {
	if id == "" {
		return nil, errors.New("temp artifact requires a job id")
	}
	if strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid job id %q", id)
	}
	if dir == "" {
		dir = os.TempDir()
	}

	a := &TempArtifact{
		kind: kind,
		path: filepath.Join(dir, kind+"_"+id+ext),
	}
	observeCreated(kind)
	return a, nil
}

// Path returns the absolute or dir-relative file path.
func (a *TempArtifact) Path() string {
	return a.path
}

// Kind returns the artifact prefix.
func (a *TempArtifact) Kind() string {
	return a.kind
}

// Remove deletes the file. Only the first call has any effect; later calls
// return the first result. A file that never existed counts as removed.
// Failures are logged and returned for inspection but callers on the request
// path are expected to ignore them.
func (a *TempArtifact) Remove() error {
	if a == nil {
		return nil
	}
	a.once.Do(func() {
		err := os.Remove(a.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.removeErr = err
			logging.Warn("failed to remove temp artifact %s: %v", a.path, err)
		}
		observeRemoved(a.kind, a.removeErr)
	})
	return a.removeErr
}

// RemoveAll removes every artifact, ignoring nil entries. It never stops at
// the first failure.
func RemoveAll(artifacts ...*TempArtifact) {
	for _, a := range artifacts {
		_ = a.Remove()
	}
}

// Sweep deletes job artifacts in dir older than maxAge. It is meant
// for startup, to clear artifacts from a process that died mid-request.
func Sweep(dir string, maxAge time.Duration) (int, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read temp directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isArtifactName(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("failed to sweep stale artifact %s: %v", path, err)
			continue
		}
		removed++
	}

	observeSwept(removed)
	return removed, nil
}

func isArtifactName(name string) bool {
	return artifactName.MatchString(name)
}
