package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/execx"
	"github.com/forPelevin/hlclip/internal/types"
)

const (
	audioFormat = "bestaudio[ext=m4a]/bestaudio"
	videoFormat = "bestvideo*+bestaudio/best"
)

type Adapter struct {
	bin        string
	cookieFile string
	fileURLs   bool
	run        execx.Runner
}

type Option func(*Adapter)

func WithRunner(r execx.Runner) Option {
	return func(a *Adapter) {
		if r != nil {
			a.run = r
		}
	}
}

func WithCookies(path string) Option {
	return func(a *Adapter) { a.cookieFile = strings.TrimSpace(path) }
}

// WithFileURLs lets file:// references through. Off by default so a request
// cannot make the server read local files.
func WithFileURLs(enabled bool) Option {
	return func(a *Adapter) { a.fileURLs = enabled }
}

func New(bin string, opts ...Option) *Adapter {
	if bin == "" {
		bin = "yt-dlp"
	}
	a := &Adapter{bin: bin, run: execx.New()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve asks yt-dlp for the source id and title without downloading.
func (a *Adapter) Resolve(ctx context.Context, ref string) (types.Source, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return types.Source{}, apperr.New(apperr.KindValidation, "resolve source", "source reference is empty")
	}
	if err := types.ValidateSourceRef(ref); err != nil {
		return types.Source{}, apperr.Wrap(apperr.KindValidation, "resolve source", err)
	}
	args := a.baseArgs()
	args = append(args,
		"--skip-download",
		"--print", "%(id)s\t%(webpage_url)s\t%(title)s",
		"--", ref,
	)
	res, err := a.run.Run(ctx, a.bin, args...)
	if err != nil {
		return types.Source{}, a.fail("yt-dlp resolve", res, err)
	}
	src, err := parseResolve(res.Stdout, ref)
	if err != nil {
		return types.Source{}, apperr.Wrap(apperr.KindFetch, "yt-dlp resolve", err)
	}
	return src, nil
}

func (a *Adapter) FetchAudio(ctx context.Context, src types.Source, outPath string) error {
	return a.download(ctx, "yt-dlp audio", src, outPath, "-f", audioFormat)
}

// FetchVideo downloads the best available streams, merged to MP4.
func (a *Adapter) FetchVideo(ctx context.Context, src types.Source, outPath string) error {
	return a.download(ctx, "yt-dlp video", src, outPath, "-f", videoFormat, "--merge-output-format", "mp4")
}

func (a *Adapter) download(ctx context.Context, op string, src types.Source, outPath string, format ...string) error {
	args := a.baseArgs()
	args = append(args, format...)
	args = append(args,
		"--no-part",
		"--force-overwrites",
		"-o", escapeOutputTemplate(outPath),
		"--", src.URL,
	)
	res, err := a.run.Run(ctx, a.bin, args...)
	if err != nil {
		return a.fail(op, res, err)
	}
	return nil
}

func (a *Adapter) baseArgs() []string {
	args := []string{"--no-playlist", "--no-warnings", "--no-progress"}
	if a.cookieFile != "" {
		args = append(args, "--cookies", a.cookieFile)
	}
	if a.fileURLs {
		args = append(args, "--enable-file-urls")
	}
	return args
}

func (a *Adapter) fail(op string, res execx.Result, err error) error {
	return &apperr.Error{
		Kind:       apperr.KindFetch,
		Op:         op,
		Diagnostic: strings.TrimSpace(string(res.Stderr)),
		Err:        err,
	}
}

func parseResolve(stdout []byte, ref string) (types.Source, error) {
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		src := types.Source{ID: strings.TrimSpace(parts[0]), URL: ref}
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" && parts[1] != "NA" {
			src.URL = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			src.Title = strings.TrimSpace(parts[2])
		}
		if src.ID == "NA" {
			src.ID = ""
		}
		if err := src.Validate(); err != nil {
			return types.Source{}, err
		}
		return src, nil
	}
	if err := sc.Err(); err != nil {
		return types.Source{}, fmt.Errorf("read yt-dlp output: %w", err)
	}
	return types.Source{}, errors.New("yt-dlp printed no source metadata")
}

// escapeOutputTemplate keeps a literal path from being read as an
// output template.
func escapeOutputTemplate(p string) string {
	return strings.ReplaceAll(p, "%", "%%")
}
