package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lyricsync/internal/session"
)

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show the segments of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.Open(cfg.Paths.SessionDB)
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := loadSession(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s  (%s, version %d)\n", sess.ID, sess.SourcePath, sess.Mode, sess.Version)
		if len(sess.Segments) == 0 {
			fmt.Fprintln(out, "no segments")
			return nil
		}
		fmt.Fprintln(out, segmentTable(sess.Segments))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// loadSession resolves an id prefix and loads the session.
func loadSession(ctx context.Context, store *session.Store, prefix string) (*session.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	id, err := store.Resolve(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return store.Get(ctx, id)
}
