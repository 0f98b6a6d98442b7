package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/domain/highlights"
	"github.com/forPelevin/hlclip/internal/execx"
	"github.com/forPelevin/hlclip/internal/logging"
	"github.com/forPelevin/hlclip/internal/ports"
	"github.com/forPelevin/hlclip/internal/ports/adapters/chat"
	"github.com/forPelevin/hlclip/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/hlclip/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/hlclip/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/hlclip/internal/usecase"
)

type Config struct {
	Listen        string
	MaxConcurrent int

	// WorkDir holds per-job scratch directories. OutDir receives rendered clips.
	WorkDir string
	OutDir  string

	YtDlpPath string
	Cookies   string

	// AllowFileURLs accepts file:// references. Meant for local runs only.
	AllowFileURLs bool

	FFmpegPath string

	WhisperBin      string
	WhisperModel    string
	WhisperLanguage string
	WhisperThreads  int

	LLMAPIKey       string
	LLMModel        string
	LLMBaseURL      string
	LLMAllowedHosts []string
	LLMReferer      string
	LLMTitle        string
	LLMTimeout      time.Duration

	SelectionPolicy string
	Timeouts        usecase.Timeouts

	LogLevel  string
	LogFormat string
}

// Validate reports the first problem as a configuration error. A missing
// reasoning credential is fatal at startup, never per request.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return apperr.Wrap(apperr.KindConfiguration, "config", err)
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.LLMAPIKey) == "" {
		return errors.New("OPENAI_API_KEY is required (set it in .env or the environment)")
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		return errors.New("work dir is required")
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return errors.New("out dir is required")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be > 0, got %d", c.MaxConcurrent)
	}
	if c.WhisperModel == "" {
		return errors.New("whisper model path is required")
	}
	if c.WhisperThreads < 0 {
		return errors.New("whisper threads must be >= 0")
	}
	if _, err := highlights.ParsePolicy(c.SelectionPolicy); err != nil {
		return err
	}
	for name, d := range map[string]time.Duration{
		"fetch":      c.Timeouts.Fetch,
		"transcribe": c.Timeouts.Transcribe,
		"select":     c.Timeouts.Select,
		"render":     c.Timeouts.Render,
		"llm":        c.LLMTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%s timeout must be >= 0", name)
		}
	}
	return chat.ValidateBaseURL(c.LLMBaseURL, c.LLMAllowedHosts)
}

// Service runs clip jobs with at most MaxConcurrent in flight.
type Service struct {
	cfg    Config
	uc     usecase.Usecase
	sem    chan struct{}
	logger *slog.Logger
}

// New validates cfg and wires the yt-dlp, whisper.cpp, ffmpeg and chat
// adapters into the orchestrator.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := highlights.ParsePolicy(cfg.SelectionPolicy)

	run := execx.New()
	ff := ffmpeg.New(cfg.FFmpegPath, ffmpeg.WithRunner(run))
	fetcher := ytdlp.New(cfg.YtDlpPath,
		ytdlp.WithRunner(run),
		ytdlp.WithCookies(cfg.Cookies),
		ytdlp.WithFileURLs(cfg.AllowFileURLs),
	)
	asr := whispercpp.New(whispercpp.Config{
		Bin:      cfg.WhisperBin,
		Model:    cfg.WhisperModel,
		Language: cfg.WhisperLanguage,
		Threads:  cfg.WhisperThreads,
	}, ff, run)
	llm := chat.New(chat.Config{
		APIKey:  cfg.LLMAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.LLMBaseURL,
		Referer: cfg.LLMReferer,
		Title:   cfg.LLMTitle,
		Timeout: cfg.LLMTimeout,
	})

	return NewWithDeps(cfg, usecase.Deps{
		Fetcher:  fetcher,
		ASR:      asr,
		Selector: highlights.NewSelector(llm, policy),
		Renderer: ff,
	}, logger), nil
}

// NewWithDeps builds a Service around caller-supplied collaborators. cfg is
// not validated.
func NewWithDeps(cfg Config, deps usecase.Deps, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = 1
	}
	return &Service{
		cfg:    cfg,
		uc:     usecase.New(deps),
		sem:    make(chan struct{}, n),
		logger: logger,
	}
}

func (s *Service) OutDir() string { return s.cfg.OutDir }

// Clip runs one job for ref. It waits for a free slot first; cancelling ctx
// while waiting abandons the job without starting it.
func (s *Service) Clip(ctx context.Context, ref, jobID string) (usecase.Result, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return usecase.Result{}, apperr.Wrap(apperr.KindInternal, "wait for slot", ctx.Err())
	}
	defer func() { <-s.sem }()

	return s.uc.Run(ctx, usecase.Input{
		SourceRef: ref,
		JobID:     jobID,
		WorkDir:   s.cfg.WorkDir,
		OutDir:    s.cfg.OutDir,
		Timeouts:  s.cfg.Timeouts,
		Logger:    s.logger,
	})
}

// ensure adapters implement ports
var _ ports.MediaFetcher = (*ytdlp.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.AudioConverter = (*ffmpeg.Adapter)(nil)
var _ ports.Renderer = (*ffmpeg.Adapter)(nil)
var _ ports.Reasoner = (*chat.Adapter)(nil)
