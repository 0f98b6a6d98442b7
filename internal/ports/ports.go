package ports

import (
	"context"

	"github.com/forPelevin/hlclip/internal/types"
)

// MediaFetcher resolves a source reference and downloads its streams to
// caller-chosen paths.
type MediaFetcher interface {
	Resolve(ctx context.Context, ref string) (types.Source, error)
	FetchAudio(ctx context.Context, src types.Source, outPath string) error
	FetchVideo(ctx context.Context, src types.Source, outPath string) error
}

type ASR interface {
	Transcribe(ctx context.Context, audioPath, scratchDir string) (types.Transcript, error)
}

type AudioConverter interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
}

// Reasoner answers a single prompt with free-form text.
type Reasoner interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type RenderRequest struct {
	VideoPath    string
	SubtitlePath string
	OutputPath   string
	Range        types.TimeRange
}

type Renderer interface {
	Render(ctx context.Context, req RenderRequest) error
}
