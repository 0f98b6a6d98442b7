// Package usecase runs one clip job: fetch audio, transcribe, select a
// highlight, fetch video and write subtitles, render.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/artifacts"
	"github.com/forPelevin/hlclip/internal/domain/subtitles"
	"github.com/forPelevin/hlclip/internal/ports"
	"github.com/forPelevin/hlclip/internal/types"
)

const totalSteps = 5

// Selector picks the highlight window for a transcript.
type Selector interface {
	Select(ctx context.Context, tr types.Transcript) (types.TimeRange, error)
}

type Deps struct {
	Fetcher  ports.MediaFetcher
	ASR      ports.ASR
	Selector Selector
	Renderer ports.Renderer
}

// Timeouts bound each stage. A zero value disables the stage deadline.
type Timeouts struct {
	Fetch      time.Duration
	Transcribe time.Duration
	Select     time.Duration
	Render     time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fetch:      15 * time.Minute,
		Transcribe: 30 * time.Minute,
		Select:     2 * time.Minute,
		Render:     30 * time.Minute,
	}
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	SourceRef string
	WorkDir   string
	OutDir    string
	// JobID labels logs. Generated when empty.
	JobID    string
	Timeouts Timeouts
	Logger   *slog.Logger
}

type StageTiming struct {
	Step    int
	Name    string
	Elapsed time.Duration
}

type Result struct {
	OutputPath string
	Job        types.ClipJob
	Stages     []StageTiming
}

type run struct {
	d       Deps
	in      Input
	log     *slog.Logger
	job     types.ClipJob
	tracker *artifacts.Tracker
	stages  []StageTiming
}

// Run executes the job. On success only the output clip remains on disk; on
// failure nothing the job created remains.
func (u Usecase) Run(ctx context.Context, in Input) (res Result, err error) {
	ref := strings.TrimSpace(in.SourceRef)
	if ref == "" {
		return Result{}, apperr.New(apperr.KindValidation, "clip", "source reference is required")
	}
	if err := types.ValidateSourceRef(ref); err != nil {
		return Result{}, apperr.Wrap(apperr.KindValidation, "clip", err)
	}
	if in.JobID == "" {
		in.JobID = uuid.NewString()
	}
	logger := in.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &run{
		d:   u.d,
		in:  in,
		log: logger.With(slog.String("job_id", in.JobID)),
		job: types.ClipJob{ID: in.JobID, SourceRef: ref},
	}
	started := time.Now()
	defer func() {
		r.cleanup(err)
		res.Stages = r.stages
		if err == nil {
			r.log.Info("clip ready",
				slog.String("output", res.OutputPath),
				slog.String("range", r.job.Range.String()),
				slog.Duration("elapsed", time.Since(started)))
		}
	}()

	audio, err := r.fetchAudio(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := r.transcribe(ctx, audio); err != nil {
		return Result{}, err
	}
	if err := r.selectRange(ctx); err != nil {
		return Result{}, err
	}
	video, subs, err := r.prepare(ctx)
	if err != nil {
		return Result{}, err
	}
	out, err := r.render(ctx, video, subs)
	if err != nil {
		return Result{}, err
	}

	r.job.Artifacts = r.tracker.Artifacts()
	return Result{OutputPath: out.Path, Job: r.job}, nil
}

func (r *run) fetchAudio(ctx context.Context) (types.Artifact, error) {
	var audio types.Artifact
	err := r.stage(ctx, 1, "fetch audio", apperr.KindFetch, r.in.Timeouts.Fetch, func(ctx context.Context) error {
		src, err := r.d.Fetcher.Resolve(ctx, r.job.SourceRef)
		if err != nil {
			return err
		}
		if err := src.Validate(); err != nil {
			return apperr.Wrap(apperr.KindFetch, "resolve source", err)
		}
		r.job.Source = src
		r.log = r.log.With(slog.String("source_id", src.ID))

		t, err := artifacts.NewTracker(r.in.WorkDir, r.in.OutDir, src.ID, r.log)
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "prepare job dir", err)
		}
		r.tracker = t

		audio = t.Acquire(types.ArtifactAudio)
		return r.d.Fetcher.FetchAudio(ctx, src, audio.Path)
	})
	return audio, err
}

func (r *run) transcribe(ctx context.Context, audio types.Artifact) error {
	err := r.stage(ctx, 2, "transcribe", apperr.KindTranscription, r.in.Timeouts.Transcribe, func(ctx context.Context) error {
		tr, err := r.d.ASR.Transcribe(ctx, audio.Path, r.tracker.Scratch())
		if err != nil {
			return err
		}
		if err := tr.Validate(); err != nil {
			return apperr.Wrap(apperr.KindTranscription, "check transcript", err)
		}
		if len(tr.Segments) == 0 {
			return apperr.New(apperr.KindEmptyTranscript, "transcribe", "no speech segments recognized")
		}
		r.job.Transcript = &tr
		r.log.Info("transcript ready",
			slog.Int("segments", len(tr.Segments)),
			slog.Float64("duration_sec", tr.End()))
		return nil
	})
	if err != nil {
		return err
	}
	if err := r.tracker.Release(audio); err != nil {
		r.log.Warn("release audio failed", slog.String("error", err.Error()))
	}
	return nil
}

func (r *run) selectRange(ctx context.Context) error {
	return r.stage(ctx, 3, "select highlight", apperr.KindReasoning, r.in.Timeouts.Select, func(ctx context.Context) error {
		tr, err := r.d.Selector.Select(ctx, *r.job.Transcript)
		if err != nil {
			return err
		}
		r.job.Range = &tr
		r.log.Info("highlight selected",
			slog.Float64("start", tr.Start),
			slog.Float64("end", tr.End),
			slog.Float64("seconds", tr.Seconds()))
		return nil
	})
}

func (r *run) prepare(ctx context.Context) (video, subs types.Artifact, err error) {
	err = r.stage(ctx, 4, "fetch video and write subtitles", apperr.KindFetch, r.in.Timeouts.Fetch, func(ctx context.Context) error {
		video = r.tracker.Acquire(types.ArtifactVideo)
		if err := r.d.Fetcher.FetchVideo(ctx, r.job.Source, video.Path); err != nil {
			return apperr.Classify(apperr.KindFetch, "fetch video", err)
		}

		b, err := subtitles.WriteSRT(*r.job.Transcript)
		if err != nil {
			return err
		}
		subs = r.tracker.Acquire(types.ArtifactSubtitle)
		if err := os.WriteFile(subs.Path, b, 0o644); err != nil {
			return apperr.Wrap(apperr.KindInternal, "write subtitles", err)
		}
		return nil
	})
	return video, subs, err
}

func (r *run) render(ctx context.Context, video, subs types.Artifact) (types.Artifact, error) {
	out := r.tracker.Acquire(types.ArtifactOutput)
	err := r.stage(ctx, 5, "render", apperr.KindRender, r.in.Timeouts.Render, func(ctx context.Context) error {
		return r.d.Renderer.Render(ctx, ports.RenderRequest{
			VideoPath:    video.Path,
			SubtitlePath: subs.Path,
			OutputPath:   out.Path,
			Range:        *r.job.Range,
		})
	})
	return out, err
}

// stage runs fn under the stage deadline, records its timing and tags any
// failure with kind unless it already carries one.
func (r *run) stage(ctx context.Context, step int, name string, kind apperr.Kind, timeout time.Duration, fn func(context.Context) error) error {
	r.log.Info(fmt.Sprintf("step %d/%d: %s", step, totalSteps, name))
	start := time.Now()

	sctx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		sctx, cancel = context.WithTimeout(ctx, timeout)
	}
	err := fn(sctx)
	timedOut := ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded)
	cancel()

	elapsed := time.Since(start)
	r.stages = append(r.stages, StageTiming{Step: step, Name: name, Elapsed: elapsed})
	if err == nil {
		r.log.Debug("stage done", slog.String("stage", name), slog.Duration("elapsed", elapsed))
		return nil
	}

	if timedOut {
		err = apperr.Wrap(kind, name, fmt.Errorf("timeout after %s: %w", timeout, err))
	} else {
		err = apperr.Classify(kind, name, err)
	}
	attrs := []any{
		slog.String("stage", name),
		slog.String("kind", apperr.KindOf(err).String()),
		slog.String("error", err.Error()),
		slog.Duration("elapsed", elapsed),
	}
	if diag := apperr.DiagnosticOf(err); diag != "" {
		attrs = append(attrs, slog.String("diagnostic", diag))
	}
	r.log.Error("stage failed", attrs...)
	return err
}

// cleanup drops every temporary artifact. After a failure a partial output
// clip is removed as well.
func (r *run) cleanup(runErr error) {
	if r.tracker == nil {
		return
	}
	if runErr != nil {
		for _, a := range r.tracker.Artifacts() {
			if a.Kind != types.ArtifactOutput {
				continue
			}
			if err := r.tracker.Release(a); err != nil {
				r.log.Warn("release output failed", slog.String("error", err.Error()))
			}
		}
	}
	if err := r.tracker.ReleaseAll(); err != nil {
		r.log.Warn("cleanup failed", slog.String("error", err.Error()))
	}
}
