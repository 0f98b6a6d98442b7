package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/execx"
	"github.com/forPelevin/hlclip/internal/ports"
	"github.com/forPelevin/hlclip/internal/types"
)

type Adapter struct {
	bin      string
	model    string
	language string
	threads  int
	conv     ports.AudioConverter
	run      execx.Runner
}

type Config struct {
	Bin      string
	Model    string
	Language string
	Threads  int
}

// New builds a whisper.cpp transcriber. whisper.cpp only reads 16 kHz WAV,
// so conv resamples the fetched audio first.
func New(cfg Config, conv ports.AudioConverter, run execx.Runner) *Adapter {
	if run == nil {
		run = execx.New()
	}
	if cfg.Language == "" {
		cfg.Language = "auto"
	}
	return &Adapter{
		bin:      cfg.Bin,
		model:    cfg.Model,
		language: cfg.Language,
		threads:  cfg.Threads,
		conv:     conv,
		run:      run,
	}
}

func (a *Adapter) Transcribe(ctx context.Context, audioPath, scratchDir string) (types.Transcript, error) {
	wav := filepath.Join(scratchDir, "audio16k.wav")
	if err := a.conv.ExtractAudioMono16k(ctx, audioPath, wav); err != nil {
		return types.Transcript{}, apperr.Classify(apperr.KindTranscription, "resample audio", err)
	}

	outPrefix := filepath.Join(scratchDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wav,
		"-l", a.language,
		"-oj",
		"-of", outPrefix,
	}
	if a.threads > 0 {
		args = append(args, "-t", strconv.Itoa(a.threads))
	}
	res, err := a.run.Run(ctx, a.bin, args...)
	if err != nil {
		return types.Transcript{}, &apperr.Error{
			Kind:       apperr.KindTranscription,
			Op:         "whisper.cpp",
			Diagnostic: strings.TrimSpace(string(res.Stderr)),
			Err:        err,
		}
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, apperr.Wrap(apperr.KindTranscription, "read whisper output", err)
	}
	tr, err := decodeTranscript(jb)
	if err != nil {
		return types.Transcript{}, apperr.Wrap(apperr.KindTranscription, "decode whisper output", err)
	}
	return tr, nil
}

// whisper.cpp -oj output; offsets are milliseconds.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// decodeTranscript drops empty and zero-length segments and renumbers the
// rest so the result always satisfies types.Transcript.Validate.
func decodeTranscript(b []byte) (types.Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, err
	}
	tr := types.Transcript{Segments: make([]types.Segment, 0, len(out.Transcription))}
	prevStart := 0.0
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		start := float64(s.Offsets.From) / 1000
		end := float64(s.Offsets.To) / 1000
		if text == "" || end <= start || start < prevStart {
			continue
		}
		tr.Segments = append(tr.Segments, types.Segment{
			Index: len(tr.Segments),
			Start: start,
			End:   end,
			Text:  text,
		})
		prevStart = start
	}
	if err := tr.Validate(); err != nil {
		return types.Transcript{}, fmt.Errorf("invalid transcript: %w", err)
	}
	return tr, nil
}
