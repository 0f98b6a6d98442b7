package subtitles

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/types"
)

// WriteSRT encodes every transcript segment as one SRT record, in order.
// Times are absolute transcript offsets; the renderer seeks on the output
// side so the subtitles filter sees the same timeline.
func WriteSRT(tr types.Transcript) ([]byte, error) {
	if len(tr.Segments) == 0 {
		return nil, apperr.New(apperr.KindEmptyTranscript, "write subtitles", "transcript has no segments")
	}
	var b bytes.Buffer
	for i, s := range tr.Segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(s.Start), srtTime(s.End), sanitizeSRT(s.Text))
	}
	return b.Bytes(), nil
}

// srtTime formats seconds as HH:MM:SS,mmm.
func srtTime(sec float64) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// sanitizeSRT keeps a record's text from terminating the record early:
// blank lines inside text are the SRT record separator.
func sanitizeSRT(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		out = append(out, ln)
	}
	if len(out) == 0 {
		return "..."
	}
	return strings.Join(out, "\n")
}
