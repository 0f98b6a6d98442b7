package types

import (
	"errors"
	"fmt"
	"strings"
)

type Transcript struct {
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// FullText joins segment texts with a single space, in segment order.
func (t Transcript) FullText() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " ")
}

// End is the end offset of the last segment, or 0 for an empty transcript.
func (t Transcript) End() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

func (t Transcript) Validate() error {
	prev := 0.0
	for i, s := range t.Segments {
		if s.Index < 0 {
			return fmt.Errorf("segment %d: negative index %d", i, s.Index)
		}
		if s.Start < 0 {
			return fmt.Errorf("segment %d: negative start %.3f", i, s.Start)
		}
		if s.Start >= s.End {
			return fmt.Errorf("segment %d: start %.3f is not before end %.3f", i, s.Start, s.End)
		}
		if i > 0 && s.Start < prev {
			return fmt.Errorf("segment %d: start %.3f precedes previous start %.3f", i, s.Start, prev)
		}
		prev = s.Start
	}
	return nil
}

type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r TimeRange) Validate() error {
	if r.Start < 0 {
		return fmt.Errorf("range start %.3f is negative", r.Start)
	}
	if r.Start >= r.End {
		return fmt.Errorf("range start %.3f is not before end %.3f", r.Start, r.End)
	}
	return nil
}

func (r TimeRange) Seconds() float64 { return r.End - r.Start }

func (r TimeRange) String() string { return fmt.Sprintf("%.3fs-%.3fs", r.Start, r.End) }

type ArtifactKind int

const (
	ArtifactAudio ArtifactKind = iota
	ArtifactVideo
	ArtifactSubtitle
	ArtifactOutput
)

func (k ArtifactKind) String() string {
	switch k {
	case ArtifactAudio:
		return "audio"
	case ArtifactVideo:
		return "video"
	case ArtifactSubtitle:
		return "subs"
	case ArtifactOutput:
		return "clip"
	default:
		return fmt.Sprintf("kind%d", int(k))
	}
}

func (k ArtifactKind) Ext() string {
	switch k {
	case ArtifactAudio:
		return ".m4a"
	case ArtifactSubtitle:
		return ".srt"
	case ArtifactVideo, ArtifactOutput:
		return ".mp4"
	default:
		return ""
	}
}

type Artifact struct {
	Path string       `json:"path"`
	Kind ArtifactKind `json:"kind"`
}

// Source is a resolved media reference. ID is stable for a given source and
// safe to use in file names once normalized.
type Source struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// PartialSuffix marks an artifact that is still being written.
const PartialSuffix = ".part"

var (
	ErrEmptySourceID   = errors.New("source id is empty")
	ErrEmptySourceRef  = errors.New("source reference is empty")
	ErrOptionSourceRef = errors.New("source reference must not start with '-'")
)

// ValidateSourceRef rejects references a command-line tool could read as
// an option.
func ValidateSourceRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrEmptySourceRef
	}
	if strings.HasPrefix(ref, "-") {
		return ErrOptionSourceRef
	}
	return nil
}

func (s Source) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return ErrEmptySourceID
	}
	if strings.TrimSpace(s.URL) == "" {
		return errors.New("source url is empty")
	}
	return nil
}

// ClipJob is the per-request aggregate. Only the orchestrator mutates it.
type ClipJob struct {
	ID         string
	SourceRef  string
	Source     Source
	Transcript *Transcript
	Range      *TimeRange
	Artifacts  []Artifact
}
