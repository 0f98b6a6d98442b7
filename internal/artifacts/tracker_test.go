package artifacts

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/hlclip/internal/types"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestReleaseAll_RemovesNonOutputAndIsIdempotent(t *testing.T) {
	tmp := t.TempDir()
	tr, err := NewTracker(filepath.Join(tmp, "work"), filepath.Join(tmp, "out"), "dQw4w9WgXcQ", nil)
	if err != nil {
		t.Fatal(err)
	}

	audio := tr.Acquire(types.ArtifactAudio)
	video := tr.Acquire(types.ArtifactVideo)
	subs := tr.Acquire(types.ArtifactSubtitle)
	out := tr.Acquire(types.ArtifactOutput)
	for _, a := range []types.Artifact{audio, video, subs, out} {
		touch(t, a.Path)
	}
	touch(t, filepath.Join(tr.Scratch(), "whisper.json"))

	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("release all: %v", err)
	}
	for _, a := range []types.Artifact{audio, video, subs} {
		if exists(a.Path) {
			t.Fatalf("%s artifact still on disk: %s", a.Kind, a.Path)
		}
	}
	if exists(tr.Scratch()) {
		t.Fatalf("scratch dir still on disk")
	}
	if !exists(out.Path) {
		t.Fatalf("output artifact must survive release")
	}

	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("second release all: %v", err)
	}
}

func TestRelease_MissingFileIsNotAnError(t *testing.T) {
	tmp := t.TempDir()
	tr, err := NewTracker(tmp, filepath.Join(tmp, "out"), "abc", nil)
	if err != nil {
		t.Fatal(err)
	}
	a := tr.Acquire(types.ArtifactVideo)
	if err := tr.Release(a); err != nil {
		t.Fatalf("release missing: %v", err)
	}
	if len(tr.Artifacts()) != 0 {
		t.Fatalf("expected artifact untracked")
	}
	// partially written file that a failed stage left behind
	b := tr.Acquire(types.ArtifactAudio)
	touch(t, b.Path)
	if err := tr.ReleaseAll(); err != nil {
		t.Fatalf("release all: %v", err)
	}
	if _, err := os.Stat(b.Path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected partial audio removed, stat err=%v", err)
	}
}

func TestAcquire_Naming(t *testing.T) {
	tmp := t.TempDir()
	tr, err := NewTracker(filepath.Join(tmp, "work"), filepath.Join(tmp, "out"), "Some/ID:1", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tr.ReleaseAll()

	sub := tr.Acquire(types.ArtifactSubtitle)
	base := filepath.Base(sub.Path)
	if !strings.HasPrefix(base, "subs_Some-ID-1-") || !strings.HasSuffix(base, ".srt") {
		t.Fatalf("unexpected subtitle name: %s", base)
	}
	if filepath.Dir(sub.Path) != tr.Scratch() {
		t.Fatalf("subtitle must live in scratch dir: %s", sub.Path)
	}
	out := tr.Acquire(types.ArtifactOutput)
	if filepath.Dir(out.Path) != filepath.Join(tmp, "out") {
		t.Fatalf("output must live in out dir: %s", out.Path)
	}
}

func TestConcurrentTrackers_NeverCollide(t *testing.T) {
	tmp := t.TempDir()
	work := filepath.Join(tmp, "work")
	outDir := filepath.Join(tmp, "out")

	ids := []string{"alpha", "beta", "alpha", "beta"}
	paths := make([][]string, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			tr, err := NewTracker(work, outDir, id, nil)
			if err != nil {
				t.Error(err)
				return
			}
			for _, k := range []types.ArtifactKind{types.ArtifactAudio, types.ArtifactVideo, types.ArtifactSubtitle, types.ArtifactOutput} {
				paths[i] = append(paths[i], tr.Acquire(k).Path)
			}
		}(i, id)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, ps := range paths {
		for _, p := range ps {
			if seen[p] {
				t.Fatalf("path collision: %s", p)
			}
			seen[p] = true
		}
	}
}

func TestSweep_RemovesOnlyStaleJobDirs(t *testing.T) {
	work := t.TempDir()
	stale := filepath.Join(work, jobsDirName, "old-job")
	fresh := filepath.Join(work, jobsDirName, "new-job")
	for _, d := range []string{stale, fresh} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	n, err := Sweep(work, 6*time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 || exists(stale) || !exists(fresh) {
		t.Fatalf("unexpected sweep result: removed=%d stale=%v fresh=%v", n, exists(stale), exists(fresh))
	}

	if n, err := Sweep(filepath.Join(work, "missing"), time.Hour, time.Now()); err != nil || n != 0 {
		t.Fatalf("sweep of missing dir: %d, %v", n, err)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "My-Cool-Video",
		"___":               "___",
		"dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"Name (v2)!":        "Name-v2",
		"../../etc":         "etc",
		"видео":             "",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}
