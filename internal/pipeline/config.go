package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/usecase"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "hlclip.toml"

type fileConfig struct {
	Server    serverSection    `toml:"server"`
	Paths     pathsSection     `toml:"paths"`
	Tools     toolsSection     `toml:"tools"`
	LLM       llmSection       `toml:"llm"`
	Selection selectionSection `toml:"selection"`
	Timeouts  timeoutsSection  `toml:"timeouts"`
	Logging   loggingSection   `toml:"logging"`
}

type serverSection struct {
	Listen        string `toml:"listen"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

type pathsSection struct {
	WorkDir string `toml:"work_dir"`
	OutDir  string `toml:"out_dir"`
}

type toolsSection struct {
	YtDlp           string `toml:"ytdlp"`
	Cookies         string `toml:"cookies"`
	AllowFileURLs   bool   `toml:"allow_file_urls"`
	FFmpeg          string `toml:"ffmpeg"`
	WhisperBin      string `toml:"whisper_bin"`
	WhisperModel    string `toml:"whisper_model"`
	WhisperLanguage string `toml:"whisper_language"`
	WhisperThreads  int    `toml:"whisper_threads"`
}

type llmSection struct {
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Model          string   `toml:"model"`
	AllowedHosts   []string `toml:"allowed_hosts"`
	Referer        string   `toml:"referer"`
	Title          string   `toml:"title"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

type selectionSection struct {
	Policy string `toml:"policy"`
}

// timeoutsSection uses pointers so an explicit 0 (no deadline) is told
// apart from an unset key.
type timeoutsSection struct {
	FetchSeconds      *int `toml:"fetch_seconds"`
	TranscribeSeconds *int `toml:"transcribe_seconds"`
	SelectSeconds     *int `toml:"select_seconds"`
	RenderSeconds     *int `toml:"render_seconds"`
}

type loggingSection struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:5000",
		MaxConcurrent:   2,
		WorkDir:         ".cache/hlclip",
		OutDir:          "out",
		YtDlpPath:       "yt-dlp",
		FFmpegPath:      "ffmpeg",
		WhisperBin:      ".cache/bin/whisper.cpp",
		WhisperModel:    ".cache/models/ggml-base.bin",
		WhisperLanguage: "auto",
		LLMModel:        "gpt-3.5-turbo",
		LLMTimeout:      90 * time.Second,
		SelectionPolicy: "clamp",
		Timeouts:        usecase.DefaultTimeouts(),
		LogLevel:        "info",
		LogFormat:       "auto",
	}
}

// LoadConfig layers defaults, the TOML file and the environment. An explicit
// path must exist; without one DefaultConfigFile is used when present.
// The result is not validated.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return Config{}, apperr.Wrap(apperr.KindConfiguration, "load config", err)
	}
	if resolved != "" {
		if err := cfg.applyFile(resolved); err != nil {
			return Config{}, apperr.Wrap(apperr.KindConfiguration, "load config", err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, apperr.Wrap(apperr.KindConfiguration, "load config", err)
	}
	return cfg, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("stat config: %w", err)
		}
		return path, nil
	}
	info, err := os.Stat(DefaultConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", nil
	}
	return DefaultConfigFile, nil
}

func (c *Config) applyFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Listen, fc.Server.Listen)
	setInt(&c.MaxConcurrent, fc.Server.MaxConcurrent)
	setString(&c.WorkDir, fc.Paths.WorkDir)
	setString(&c.OutDir, fc.Paths.OutDir)
	setString(&c.YtDlpPath, fc.Tools.YtDlp)
	setString(&c.Cookies, fc.Tools.Cookies)
	c.AllowFileURLs = c.AllowFileURLs || fc.Tools.AllowFileURLs
	setString(&c.FFmpegPath, fc.Tools.FFmpeg)
	setString(&c.WhisperBin, fc.Tools.WhisperBin)
	setString(&c.WhisperModel, fc.Tools.WhisperModel)
	setString(&c.WhisperLanguage, fc.Tools.WhisperLanguage)
	setInt(&c.WhisperThreads, fc.Tools.WhisperThreads)
	setString(&c.LLMAPIKey, fc.LLM.APIKey)
	setString(&c.LLMBaseURL, fc.LLM.BaseURL)
	setString(&c.LLMModel, fc.LLM.Model)
	if len(fc.LLM.AllowedHosts) > 0 {
		c.LLMAllowedHosts = fc.LLM.AllowedHosts
	}
	setString(&c.LLMReferer, fc.LLM.Referer)
	setString(&c.LLMTitle, fc.LLM.Title)
	setSeconds(&c.LLMTimeout, fc.LLM.TimeoutSeconds)
	setString(&c.SelectionPolicy, fc.Selection.Policy)
	setStageSeconds(&c.Timeouts.Fetch, fc.Timeouts.FetchSeconds)
	setStageSeconds(&c.Timeouts.Transcribe, fc.Timeouts.TranscribeSeconds)
	setStageSeconds(&c.Timeouts.Select, fc.Timeouts.SelectSeconds)
	setStageSeconds(&c.Timeouts.Render, fc.Timeouts.RenderSeconds)
	setString(&c.LogLevel, fc.Logging.Level)
	setString(&c.LogFormat, fc.Logging.Format)
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	key := getenv("OPENAI_API_KEY")
	if v := getenv("HLCLIP_LLM_API_KEY"); v != "" {
		key = v
	}
	setString(&c.LLMAPIKey, key)
	setString(&c.LLMModel, getenv("HLCLIP_LLM_MODEL"))
	setString(&c.LLMBaseURL, getenv("HLCLIP_LLM_BASE_URL"))
	if v := getenv("HLCLIP_LLM_ALLOWED_HOSTS"); strings.TrimSpace(v) != "" {
		c.LLMAllowedHosts = strings.Split(v, ",")
	}
	setString(&c.WorkDir, getenv("HLCLIP_WORK_DIR"))
	setString(&c.OutDir, getenv("HLCLIP_OUT_DIR"))
	setString(&c.Listen, getenv("HLCLIP_LISTEN"))
	setString(&c.SelectionPolicy, getenv("HLCLIP_SELECTION_POLICY"))
	setString(&c.WhisperBin, getenv("HLCLIP_WHISPER_BIN"))
	setString(&c.WhisperModel, getenv("HLCLIP_WHISPER_MODEL"))
	setString(&c.FFmpegPath, getenv("HLCLIP_FFMPEG"))
	setString(&c.YtDlpPath, getenv("HLCLIP_YTDLP"))
	if v := strings.TrimSpace(getenv("HLCLIP_ALLOW_FILE_URLS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("HLCLIP_ALLOW_FILE_URLS: %w", err)
		}
		c.AllowFileURLs = b
	}
	if v := strings.TrimSpace(getenv("HLCLIP_MAX_CONCURRENT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HLCLIP_MAX_CONCURRENT: %w", err)
		}
		c.MaxConcurrent = n
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v int) {
	if v != 0 {
		*dst = time.Duration(v) * time.Second
	}
}

func setStageSeconds(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Second
	}
}
