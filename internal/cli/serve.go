package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/forPelevin/hlclip/internal/artifacts"
	"github.com/forPelevin/hlclip/internal/httpapi"
	"github.com/forPelevin/hlclip/internal/pipeline"
)

const (
	lockFileName  = ".hlclip.lock"
	staleJobAge   = 6 * time.Hour
	responseSlack = time.Minute
)

var errWorkDirLocked = errors.New("work dir is in use by another hlclip server")

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /clip and the rendered clips over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	}
	cmd.Flags().String("listen", "", "Address to listen on (default 127.0.0.1:5000)")
	return cmd
}

func serve(cmd *cobra.Command) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	svc, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	lock, err := lockWorkDir(cfg.WorkDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	removed, err := artifacts.Sweep(cfg.WorkDir, staleJobAge, time.Now())
	if err != nil {
		logger.Warn("stale job sweep failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("removed stale job dirs", slog.Int("count", removed))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.New(svc, httpapi.Options{
		Bind:         cfg.Listen,
		OutDir:       svc.OutDir(),
		WriteTimeout: responseTimeout(cfg),
		Logger:       logger,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")
	srv.Stop()
	return nil
}

// lockWorkDir keeps two servers from sweeping each other's live jobs.
func lockWorkDir(workDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(filepath.Join(workDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock work dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errWorkDirLocked, workDir)
	}
	return lock, nil
}

// responseTimeout covers every stage of one job. Zero means no limit.
func responseTimeout(cfg pipeline.Config) time.Duration {
	t := cfg.Timeouts
	if t.Fetch == 0 || t.Transcribe == 0 || t.Select == 0 || t.Render == 0 {
		return 0
	}
	return 2*t.Fetch + t.Transcribe + t.Select + t.Render + responseSlack
}
