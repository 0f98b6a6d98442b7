package types

import "testing"

func TestTranscript_FullTextAndEnd(t *testing.T) {
	tr := Transcript{Segments: []Segment{
		{Index: 0, Start: 0, End: 2, Text: "hello"},
		{Index: 1, Start: 2, End: 5.5, Text: "world"},
	}}
	if got := tr.FullText(); got != "hello world" {
		t.Fatalf("FullText() = %q", got)
	}
	if got := tr.End(); got != 5.5 {
		t.Fatalf("End() = %v", got)
	}
	if got := (Transcript{}).End(); got != 0 {
		t.Fatalf("empty End() = %v", got)
	}
}

func TestTranscript_Validate(t *testing.T) {
	tests := []struct {
		name    string
		segs    []Segment
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", []Segment{{Start: 0, End: 1}, {Index: 1, Start: 1, End: 2}}, false},
		{"overlap allowed", []Segment{{Start: 0, End: 3}, {Index: 1, Start: 1, End: 2}}, false},
		{"zero length", []Segment{{Start: 1, End: 1}}, true},
		{"negative start", []Segment{{Start: -1, End: 1}}, true},
		{"out of order", []Segment{{Start: 5, End: 6}, {Index: 1, Start: 1, End: 2}}, true},
		{"negative index", []Segment{{Index: -1, Start: 0, End: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transcript{Segments: tt.segs}.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTimeRange_Validate(t *testing.T) {
	if err := (TimeRange{Start: 0, End: 1}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (TimeRange{Start: 2, End: 2}).Validate(); err == nil {
		t.Fatalf("expected error for empty range")
	}
	if err := (TimeRange{Start: -1, End: 2}).Validate(); err == nil {
		t.Fatalf("expected error for negative start")
	}
}

func TestArtifactKind_Names(t *testing.T) {
	if ArtifactSubtitle.Ext() != ".srt" || ArtifactOutput.String() != "clip" {
		t.Fatalf("unexpected kind naming: %s %s", ArtifactSubtitle.Ext(), ArtifactOutput.String())
	}
}

func TestValidateSourceRef(t *testing.T) {
	cases := map[string]error{
		"https://youtu.be/abc": nil,
		"  ":                   ErrEmptySourceRef,
		"--exec=touch /tmp/x":  ErrOptionSourceRef,
		" -o/etc/passwd":       ErrOptionSourceRef,
	}
	for ref, want := range cases {
		if got := ValidateSourceRef(ref); got != want {
			t.Errorf("ValidateSourceRef(%q) = %v, want %v", ref, got, want)
		}
	}
}
