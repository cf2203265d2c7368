package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lyricsync/internal/lyrics"
	"lyricsync/internal/worker"
)

var batchCmd = &cobra.Command{
	Use:   "batch <input-file>...",
	Short: "Align several songs",
	Long: `Align several audio or video files. With --lyrics-dir the lyrics for
song.mp4 are read from <lyrics-dir>/song.txt; inputs without a lyrics file are
aligned word by word. A failed input does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

var (
	batchFlags    runFlags
	lyricsDir     string
	maxConcurrent int
	noAsync       bool
)

func init() {
	batchCmd.Flags().StringVar(&lyricsDir, "lyrics-dir", "", "directory holding <input base>.txt lyrics files")
	batchCmd.Flags().IntVarP(&maxConcurrent, "max-concurrent", "j", 0, "max concurrent jobs (default from config)")
	batchCmd.Flags().BoolVar(&noAsync, "no-async", false, "process inputs one at a time")
	batchFlags.register(batchCmd)

	rootCmd.AddCommand(batchCmd)
}

var errNoInputs = errors.New("no inputs given")

func batchJobs(inputs []string) ([]worker.Job, error) {
	if len(inputs) == 0 {
		return nil, errNoInputs
	}
	jobs := make([]worker.Job, 0, len(inputs))
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		}
		job := worker.Job{InputPath: abs}
		if lyricsDir != "" {
			base := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
			path := filepath.Join(lyricsDir, base+".txt")
			lines, err := lyrics.ReadFile(path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				slog.Warn("no lyrics file, aligning words only", "input", filepath.Base(abs), "lyrics", path)
			case err != nil:
				return nil, fmt.Errorf("read lyrics for %s: %w", filepath.Base(abs), err)
			default:
				job.Lines = lines
			}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := batchFlags.apply(cmd); err != nil {
		return err
	}
	jobs, err := batchJobs(args)
	if err != nil {
		return err
	}

	base, closeStore, err := batchFlags.baseOptions()
	if err != nil {
		return err
	}
	defer closeStore()

	limit := cfg.Batch.MaxConcurrent
	if maxConcurrent > 0 {
		limit = maxConcurrent
	}

	ctx, stop := signalContext()
	defer stop()

	results, err := worker.RunBatch(ctx, jobs, worker.BatchOptions{
		Base:            base,
		MaxConcurrent:   limit,
		RateLimitPerMin: cfg.Batch.RateLimitPerMin,
		NoAsync:         noAsync,
	})

	done := 0
	for _, res := range results {
		if res == nil {
			continue
		}
		done++
		if res.SessionID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", res.SessionID, res.InputPath)
		}
	}
	slog.Info("batch finished", "succeeded", done, "total", len(jobs))
	return err
}
