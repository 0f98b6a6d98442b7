package subtitles

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/types"
)

func testTranscript() types.Transcript {
	return types.Transcript{Segments: []types.Segment{
		{Index: 0, Start: 0, End: 30, Text: "first part"},
		{Index: 1, Start: 30, End: 61.234, Text: "second part"},
		{Index: 2, Start: 61.234, End: 90, Text: "third part"},
	}}
}

func TestWriteSRT_OneRecordPerSegmentInOrder(t *testing.T) {
	tr := testTranscript()
	b, err := WriteSRT(tr)
	if err != nil {
		t.Fatal(err)
	}
	records := strings.Split(strings.TrimSuffix(string(b), "\n\n"), "\n\n")
	if len(records) != len(tr.Segments) {
		t.Fatalf("expected %d records, got %d:\n%s", len(tr.Segments), len(records), b)
	}
	for i, rec := range records {
		lines := strings.Split(rec, "\n")
		if lines[0] != fmt.Sprint(i+1) {
			t.Fatalf("record %d: index line %q", i, lines[0])
		}
		if !strings.Contains(lines[1], " --> ") {
			t.Fatalf("record %d: timing line %q", i, lines[1])
		}
		if lines[2] != tr.Segments[i].Text {
			t.Fatalf("record %d: text %q", i, lines[2])
		}
	}
	if !strings.Contains(string(b), "00:00:30,000 --> 00:01:01,234") {
		t.Fatalf("unexpected timing lines:\n%s", b)
	}
}

func TestWriteSRT_Deterministic(t *testing.T) {
	a, err := WriteSRT(testTranscript())
	if err != nil {
		t.Fatal(err)
	}
	b, err := WriteSRT(testTranscript())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("expected byte-identical output")
	}
}

func TestWriteSRT_EmptyTranscript(t *testing.T) {
	_, err := WriteSRT(types.Transcript{})
	if !errors.Is(err, apperr.ErrEmptyTranscript) {
		t.Fatalf("expected EmptyTranscript error, got %v", err)
	}
}

func TestWriteSRT_BlankLinesInTextDoNotSplitRecords(t *testing.T) {
	tr := types.Transcript{Segments: []types.Segment{{Start: 0, End: 1, Text: "a\n\nb"}}}
	b, err := WriteSRT(tr)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(b), "\n\n"); got != 1 {
		t.Fatalf("expected a single record separator, got %d:\n%s", got, b)
	}
}

func TestSrtTime_Format(t *testing.T) {
	tests := map[float64]string{
		0:       "00:00:00,000",
		61.2346: "00:01:01,235",
		3725.5:  "01:02:05,500",
		-3:      "00:00:00,000",
		59.9996: "00:01:00,000",
	}
	for in, want := range tests {
		if got := srtTime(in); got != want {
			t.Fatalf("srtTime(%v) = %q, want %q", in, got, want)
		}
	}
}
