package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MeKo-Tech/mokugo/internal/config"
	"github.com/MeKo-Tech/mokugo/internal/generator"
	"github.com/MeKo-Tech/mokugo/internal/metrics"
	"github.com/MeKo-Tech/mokugo/internal/volume"
	"github.com/spf13/cobra"
)

// runCmd processes volumes and writes their .mokuro files.
var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Run OCR on manga volumes and write .mokuro files",
	Long: `Process one or more manga volumes. Each path is either a directory of page
images or a .zip/.cbz archive. The .mokuro file is written next to it, and
pages already in the _ocr cache are not recomputed.

Examples:
  mokugo run "manga/Title/Volume 1"
  mokugo run manga/Title/*.cbz --yes
  mokugo run --parent-dir manga/Title --ignore-errors`,
	Args: cobra.ArbitraryArgs,
	RunE: runRunCommand,
}

func runRunCommand(cmd *cobra.Command, args []string) error {
	parentDir, _ := cmd.Flags().GetString("parent-dir")
	if len(args) == 0 && parentDir == "" {
		return errors.New("no input paths provided")
	}

	cfg := GetConfig()
	if cmd.Flags().Changed("force-cpu") {
		if forceCPU, _ := cmd.Flags().GetBool("force-cpu"); forceCPU {
			cfg.GPU.Enabled = false
		}
	}

	m := metrics.New()
	gen := generator.New(newProcessorFactory(cfg), generator.WithMetrics(m))
	defer func() {
		if err := gen.Close(); err != nil {
			slog.Warn("Failed to release models", "error", err)
		}
	}()

	runner := &generator.Runner{Generator: gen, Metrics: m}
	summary, err := runner.Run(cmd.Context(), args, generator.RunOptions{
		ParentDir:    parentDir,
		IgnoreErrors: cfg.Run.IgnoreErrors,
		NoCache:      cfg.Run.NoCache,
		Unzip:        cfg.Run.Unzip,
		Lock:         cfg.Run.Lock,
		Confirm:      confirmFunc(cmd, cfg),
		Progress:     generator.NewProgress(cmd.ErrOrStderr()),
	})

	if cfg.Metrics.Textfile != "" {
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			slog.Warn("Failed to write metrics", "path", cfg.Metrics.Textfile, "error", werr)
		}
	}
	if err != nil {
		return err
	}
	if summary.Aborted {
		return nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Processed successfully: %d/%d\n", summary.Succeeded, summary.Total)
	if len(summary.Failed) > 0 {
		return fmt.Errorf("%d volume(s) failed: %s", len(summary.Failed), strings.Join(summary.Failed, ", "))
	}
	return nil
}

// confirmFunc lists the volumes and, on an interactive terminal, asks
// before processing. --yes or a non-interactive stdin skips the question.
func confirmFunc(cmd *cobra.Command, cfg *config.Config) func([]*volume.Volume) bool {
	return func(volumes []*volume.Volume) bool {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Found %d volume(s):\n", len(volumes))
		if err := writeVolumeTable(out, volumes); err != nil {
			slog.Warn("Failed to list volumes", "error", err)
		}

		if cfg.Run.Yes {
			return true
		}
		in := cmd.InOrStdin()
		if !generator.IsTerminal(in) {
			slog.Info("Input is not a terminal, continuing without confirmation")
			return true
		}
		return askYesNo(in, out, "Each of the volumes above will be processed. Continue?")
	}
}

// askYesNo reads one answer from in; anything but y/yes is a no.
func askYesNo(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("parent-dir", "", "also process every volume directly inside this directory")
	runCmd.Flags().Bool("ignore-errors", false, "skip pages that fail instead of aborting the volume")
	runCmd.Flags().Bool("no-cache", false, "recompute pages even if a cached result exists")
	runCmd.Flags().Bool("unzip", false, "extract archives next to them instead of into a temporary directory")
	runCmd.Flags().Bool("disable-ocr", false, "write empty pages without loading any model")
	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	runCmd.Flags().Bool("force-cpu", false, "never use the GPU")
	runCmd.Flags().Bool("lock", true, "take a per-volume lock while processing")
	runCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file after the run")

	bindFlags(runCmd.Flags(), []flagBinding{
		{"run.ignore_errors", "ignore-errors"},
		{"run.no_cache", "no-cache"},
		{"run.unzip", "unzip"},
		{"run.disable_ocr", "disable-ocr"},
		{"run.yes", "yes"},
		{"run.lock", "lock"},
		{"metrics.textfile", "metrics-textfile"},
	})
}
