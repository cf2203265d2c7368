package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"lyricsync/internal/lyrics"
	"lyricsync/internal/worker"
)

var alignCmd = &cobra.Command{
	Use:   "align <input-file>",
	Short: "Transcribe a song and align lyrics to it",
	Long: `Transcribe an audio or video file and align the given lyrics to the
recognized words, one segment per lyric line. Without lyrics every recognized
word becomes its own segment.`,
	Example: `  lyricsync align song.mp4 --lyrics song.txt
  pbpaste | lyricsync align song.mp3 --lyrics - --format lrc`,
	Args: cobra.ExactArgs(1),
	RunE: runAlign,
}

var (
	alignFlags   runFlags
	lyricsPath   string
	useClipboard bool
)

func init() {
	alignCmd.Flags().StringVar(&lyricsPath, "lyrics", "", "lyrics file, one line per segment (- for stdin)")
	alignCmd.Flags().BoolVar(&useClipboard, "clipboard", false, "read lyrics from the clipboard")
	alignCmd.MarkFlagsMutuallyExclusive("lyrics", "clipboard")
	alignFlags.register(alignCmd)

	rootCmd.AddCommand(alignCmd)
}

func readLyrics() ([]string, error) {
	switch {
	case useClipboard:
		return lyrics.FromClipboard()
	case lyricsPath != "":
		return lyrics.ReadFile(lyricsPath)
	default:
		return nil, nil
	}
}

func runAlign(cmd *cobra.Command, args []string) error {
	inputPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := alignFlags.apply(cmd); err != nil {
		return err
	}

	lines, err := readLyrics()
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		slog.Info("no lyrics given, aligning words only")
	}

	opts, closeStore, err := alignFlags.baseOptions()
	if err != nil {
		return err
	}
	defer closeStore()
	opts.InputPath = inputPath
	opts.Lines = lines

	ctx, stop := signalContext()
	defer stop()

	res, err := worker.Run(ctx, opts)
	if res != nil && res.SessionID != "" {
		fmt.Fprintln(cmd.OutOrStdout(), res.SessionID)
	}
	if err != nil {
		if res != nil {
			return fmt.Errorf("some exports failed: %w", err)
		}
		return err
	}

	if !quiet {
		slog.Info("done", "segments", len(res.Segments), "exports", len(res.Written))
	}
	return nil
}
