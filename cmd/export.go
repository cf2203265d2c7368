package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lyricsync/internal/session"
	"lyricsync/internal/worker"
)

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Write a session as LRC, SRT or TXT",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	exportFormats   []string
	exportOutputDir string
)

func init() {
	exportCmd.Flags().StringSliceVar(&exportFormats, "format", nil, "export formats: lrc, srt, txt (default from config)")
	exportCmd.Flags().StringVarP(&exportOutputDir, "output", "o", "", "export directory (default: next to the source)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	formats := cfg.Export.Formats
	if cmd.Flags().Changed("format") {
		formats = exportFormats
	}
	outputDir := cfg.Export.OutputDir
	if cmd.Flags().Changed("output") {
		outputDir = exportOutputDir
	}

	store, err := session.Open(cfg.Paths.SessionDB)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := loadSession(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}

	written, err := worker.Export(sess.Segments, worker.OutputBase(sess.SourcePath, outputDir), formats)
	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return err
}
