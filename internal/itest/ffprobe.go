//go:build integration

package itest

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probeResult struct {
	Duration float64
	Streams  []string
}

// probe reports the container duration and the codec type of every stream.
func probe(path string) (probeResult, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "default=noprint_wrappers=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return probeResult{}, fmt.Errorf("ffprobe: %w\n%s", err, string(b))
	}

	var res probeResult
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch k {
		case "codec_type":
			res.Streams = append(res.Streams, v)
		case "duration":
			sec, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return probeResult{}, fmt.Errorf("parse duration %q: %w", v, err)
			}
			res.Duration = sec
		}
	}
	return res, nil
}

func (p probeResult) has(codecType string) bool {
	for _, s := range p.Streams {
		if s == codecType {
			return true
		}
	}
	return false
}
