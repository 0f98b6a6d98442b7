// Package artifacts owns the temporary files of a single clip job.
//
// A Tracker is scoped to one request. Every file the pipeline creates is
// registered through Acquire; ReleaseAll deletes every non-output artifact
// and the job's scratch directory. Output artifacts are handed to the caller.
package artifacts

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/forPelevin/hlclip/internal/types"
)

const jobsDirName = "jobs"

type Tracker struct {
	mu       sync.Mutex
	scratch  string
	outDir   string
	prefix   string
	items    []types.Artifact
	released bool
	logger   *slog.Logger
}

// NewTracker creates <workDir>/jobs/<id>-<token>/ and ensures outDir exists.
// The random token keeps concurrent jobs for the same source apart.
func NewTracker(workDir, outDir, sourceID string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	id := normalizePathSegment(sourceID)
	if id == "" {
		id = "source"
	}
	prefix := id + "-" + newToken()
	scratch := filepath.Join(workDir, jobsDirName, prefix)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Tracker{scratch: scratch, outDir: outDir, prefix: prefix, logger: logger}, nil
}

// Scratch is the job-private directory for collaborator intermediates.
// It is removed by ReleaseAll.
func (t *Tracker) Scratch() string { return t.scratch }

// Acquire registers and returns a new artifact path. The file itself is not
// created; collaborators write to the path.
func (t *Tracker) Acquire(kind types.ArtifactKind) types.Artifact {
	dir := t.scratch
	if kind == types.ArtifactOutput {
		dir = t.outDir
	}
	a := types.Artifact{
		Path: filepath.Join(dir, kind.String()+"_"+t.prefix+kind.Ext()),
		Kind: kind,
	}
	t.mu.Lock()
	t.items = append(t.items, a)
	t.mu.Unlock()
	return a
}

// Release deletes a single artifact of any kind and stops tracking it.
// A missing file is not an error.
func (t *Tracker) Release(a types.Artifact) error {
	t.mu.Lock()
	for i, it := range t.items {
		if it == a {
			t.items = append(t.items[:i], t.items[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	return removeIfExists(a.Path)
}

// ReleaseAll deletes every tracked non-output artifact and the scratch dir.
// Only the first call does any work.
func (t *Tracker) ReleaseAll() error {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return nil
	}
	t.released = true
	items := t.items
	t.items = nil
	t.mu.Unlock()

	var errs []error
	for _, a := range items {
		if a.Kind == types.ArtifactOutput {
			continue
		}
		if err := removeIfExists(a.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		t.logger.Debug("artifact released", slog.String("kind", a.Kind.String()), slog.String("path", a.Path))
	}
	if err := os.RemoveAll(t.scratch); err != nil {
		errs = append(errs, fmt.Errorf("remove job dir: %w", err))
	}
	return errors.Join(errs...)
}

// Artifacts returns the currently tracked artifacts.
func (t *Tracker) Artifacts() []types.Artifact {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Artifact, len(t.items))
	copy(out, t.items)
	return out
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
