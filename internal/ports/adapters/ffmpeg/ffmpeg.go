package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/execx"
	"github.com/forPelevin/hlclip/internal/ports"
	"github.com/forPelevin/hlclip/internal/types"
)

type Adapter struct {
	ffmpeg string
	run    execx.Runner
}

type Option func(*Adapter)

// WithRunner overrides the subprocess runner (used by tests).
func WithRunner(r execx.Runner) Option {
	return func(a *Adapter) {
		if r != nil {
			a.run = r
		}
	}
}

func New(ffmpegPath string, opts ...Option) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	a := &Adapter{ffmpeg: ffmpegPath, run: execx.New()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, in, outWav string) error {
	res, err := a.run.Run(ctx, a.ffmpeg,
		"-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	if err != nil {
		return &apperr.Error{
			Kind:       apperr.KindTranscription,
			Op:         "ffmpeg extract audio",
			Diagnostic: strings.TrimSpace(string(res.Stderr)),
			Err:        err,
		}
	}
	return nil
}

// Render trims the video to req.Range and burns in the subtitle file.
// ffmpeg writes to a partial file that is renamed into place on success,
// so req.OutputPath only ever holds a finished clip.
// Failures carry ffmpeg's stderr verbatim as the diagnostic.
func (a *Adapter) Render(ctx context.Context, req ports.RenderRequest) error {
	if err := req.Range.Validate(); err != nil {
		return apperr.Wrap(apperr.KindRender, "ffmpeg render", err)
	}
	partial := req.OutputPath + types.PartialSuffix
	res, err := a.run.Run(ctx, a.ffmpeg, renderArgs(req, partial)...)
	if err != nil {
		_ = os.Remove(partial)
		return &apperr.Error{
			Kind:       apperr.KindRender,
			Op:         "ffmpeg render",
			Diagnostic: string(res.Stderr),
			Err:        fmt.Errorf("exit code %d: %w", res.ExitCode, err),
		}
	}
	if err := os.Rename(partial, req.OutputPath); err != nil {
		_ = os.Remove(partial)
		return apperr.Wrap(apperr.KindRender, "ffmpeg render", fmt.Errorf("publish clip: %w", err))
	}
	return nil
}

// renderArgs seeks on the output side: frames reach the subtitles filter
// with their original timestamps, so absolute subtitle times line up.
func renderArgs(req ports.RenderRequest, outPath string) []string {
	args := []string{
		"-y",
		"-i", req.VideoPath,
		"-ss", fmtSeconds(req.Range.Start),
		"-to", fmtSeconds(req.Range.End),
	}
	if req.SubtitlePath != "" {
		args = append(args, "-vf", "subtitles=filename="+EscapeFilterPath(req.SubtitlePath))
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "18",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-f", "mp4",
		outPath,
	)
	return args
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

// EscapeFilterPath escapes a path for use as a filter option value inside
// a -vf filtergraph. ffmpeg unescapes twice: once when splitting the graph
// and once when splitting the filter's key=value options.
func EscapeFilterPath(p string) string {
	return escapeGraph(quoteOption(p))
}

// quoteOption single-quotes the value so ':' and '\' stay literal; an
// embedded quote closes the string, is escaped, and reopens it.
func quoteOption(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

var graphEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

func escapeGraph(v string) string {
	return graphEscaper.Replace(v)
}
