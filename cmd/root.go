package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lyricsync/internal/config"
)

var (
	cfgPath string
	verbose bool
	quiet   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lyricsync",
	Short: "Align song lyrics to audio and export LRC/SRT/TXT",
	Long: `Lyricsync transcribes a song with word timestamps, matches each lyric line
against the recognized words and writes synced lyrics. Results are kept as
sessions that can be edited (nudge, split, merge) and exported again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging("")
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogging(cfg.Logging.Level)
		return nil
	},
}

func setupLogging(configured string) {
	level := slog.LevelInfo
	if configured != "" {
		_ = level.UnmarshalText([]byte(configured))
	}
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.config/lyricsync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
}
