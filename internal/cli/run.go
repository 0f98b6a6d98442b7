package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forPelevin/hlclip/internal/apperr"
	"github.com/forPelevin/hlclip/internal/pipeline"
)

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <url>",
		Short: "Clip one video and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClip(cmd, args[0])
		},
	}
}

func runClip(cmd *cobra.Command, ref string) error {
	cfg, logger, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	svc, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := svc.Clip(ctx, ref, "")
	if err != nil {
		if diag := apperr.DiagnosticOf(err); diag != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), diag)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "clip: %s\n", res.OutputPath)
	if res.Job.Source.Title != "" {
		fmt.Fprintf(out, "source: %s (%s)\n", res.Job.Source.Title, res.Job.Source.ID)
	} else {
		fmt.Fprintf(out, "source: %s\n", res.Job.Source.ID)
	}
	if r := res.Job.Range; r != nil {
		fmt.Fprintf(out, "range: %.2fs - %.2fs (%.1fs)\n", r.Start, r.End, r.Seconds())
	}
	fmt.Fprintln(out, renderStageTable(res.Stages))
	return nil
}
