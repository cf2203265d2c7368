package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lyricsync/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage saved sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := session.Open(cfg.Paths.SessionDB)
		if err != nil {
			return err
		}
		defer store.Close()

		sums, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(sums) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), sessionTable(sums))
		return nil
	},
}

var sessionDumpCmd = &cobra.Command{
	Use:   "dump <session> [file]",
	Short: "Write a session snapshot as YAML (stdout without a file)",
	Args:  cobra.RangeArgs(1, 2),
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
		if len(args) == 1 || args[1] == "-" {
			return session.DumpYAML(cmd.OutOrStdout(), sess)
		}

		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		if err := session.DumpYAML(f, sess); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close snapshot: %w", err)
		}
		slog.Info("snapshot written", "path", args[1])
		return nil
	},
}

var sessionLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Import a YAML session snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := session.LoadYAMLFile(args[0])
		if err != nil {
			return err
		}
		store, err := session.Open(cfg.Paths.SessionDB)
		if err != nil {
			return err
		}
		defer store.Close()

		imported, err := store.Import(cmd.Context(), snap)
		if err != nil {
			return err
		}
		if imported.ID != snap.ID {
			slog.Info("snapshot id already in use, assigned a new one", "snapshot", snap.ID)
		}
		fmt.Fprintln(cmd.OutOrStdout(), imported.ID)
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := session.Open(cfg.Paths.SessionDB)
		if err != nil {
			return err
		}
		defer store.Close()

		lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
		unlock, err := store.Lock(lockCtx)
		cancel()
		if err != nil {
			return err
		}
		defer unlock()

		id, err := store.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		slog.Info("session deleted", "id", id)
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionListCmd, sessionDumpCmd, sessionLoadCmd, sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}
