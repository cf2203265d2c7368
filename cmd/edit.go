package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lyricsync/internal/segment"
	"lyricsync/internal/session"
)

const lockTimeout = 10 * time.Second

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Adjust the segments of a session",
}

var nudgeCmd = &cobra.Command{
	Use:   "nudge <session> <index> <delta-seconds>",
	Short: "Shift one segment's start and end by a delta",
	Example: `  lyricsync edit nudge 3f2a 4 0.25
  lyricsync edit nudge 3f2a 4 -- -0.5`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		delta, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q: %w", args[2], err)
		}
		return editSession(cmd, args[0], func(t *segment.Track) error {
			return t.Nudge(index, delta)
		})
	},
}

var splitCmd = &cobra.Command{
	Use:   "split <session> <index>",
	Short: "Split a segment in two at its midpoint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		return editSession(cmd, args[0], func(t *segment.Track) error {
			return t.Split(index)
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <session> <index>",
	Short: "Merge a segment with the one after it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		return editSession(cmd, args[0], func(t *segment.Track) error {
			merged, err := t.Merge(index)
			if err == nil && !merged {
				slog.Warn("last segment has no successor, nothing merged", "index", index)
			}
			return err
		})
	},
}

func init() {
	editCmd.AddCommand(nudgeCmd, splitCmd, mergeCmd)
	rootCmd.AddCommand(editCmd)
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", s, err)
	}
	return i, nil
}

// editSession applies op to a session under the store lock and saves it.
func editSession(cmd *cobra.Command, prefix string, op func(*segment.Track) error) error {
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

	sess, err := loadSession(ctx, store, prefix)
	if err != nil {
		return err
	}
	track := sess.Track()
	if err := op(track); err != nil {
		return err
	}
	if err := store.Save(ctx, sess.ID, sess.Version, track); err != nil {
		return err
	}

	slog.Info("session updated", "id", sess.ID, "version", track.Version(), "segments", track.Len())
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), segmentTable(track.Snapshot()))
	}
	return nil
}
