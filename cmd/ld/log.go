package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"leavedesk/internal/repo"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Local activity log",
		Long:  "Every login, approval, rejection, cancellation and submission made from this workspace, oldest first.",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var (
		n        int
		f        repo.EventFilter
		follow   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			items, err := a.Repo.LatestEvents(ctx, n, f)
			if err != nil {
				return err
			}
			slices.Reverse(items)
			out := cmd.OutOrStdout()
			if !follow {
				if viper.GetBool("json") {
					return printJSON(out, items)
				}
				printEvents(out, items)
				return nil
			}
			cursor, err := a.Repo.LatestEventID(ctx)
			if err != nil {
				return err
			}
			emit(out, items)
			return followEvents(ctx, a.Repo, cursor, interval, f, func(evts []repo.Event) { emit(out, evts) })
		},
	}
	cmd.Flags().IntVarP(&n, "n", "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter, e.g. leave.actioned")
	cmd.Flags().StringVar(&f.LeaveID, "leave", "", "leave id filter")
	cmd.Flags().StringVar(&f.Actor, "actor", "", "actor email filter")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new events")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval with --follow")
	return cmd
}

// followEvents polls for rows after cursor until ctx is done. The log is
// written by other ld processes, so polling the store is the only feed.
func followEvents(ctx context.Context, r repo.Repo, cursor int64, interval time.Duration, f repo.EventFilter, fn func([]repo.Event)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
		evts, err := r.EventsAfter(ctx, cursor, 100)
		if err != nil {
			return err
		}
		if len(evts) == 0 {
			continue
		}
		cursor = evts[len(evts)-1].ID
		evts = slices.DeleteFunc(evts, func(e repo.Event) bool { return !matches(f, e) })
		if len(evts) > 0 {
			fn(evts)
		}
	}
}

func matches(f repo.EventFilter, e repo.Event) bool {
	return (f.Type == "" || f.Type == e.Type) &&
		(f.LeaveID == "" || f.LeaveID == e.LeaveID) &&
		(f.Actor == "" || f.Actor == e.Actor)
}

func emit(w io.Writer, evts []repo.Event) {
	if viper.GetBool("json") {
		for _, e := range evts {
			_ = printJSON(w, e)
		}
		return
	}
	for _, e := range evts {
		fmt.Fprintln(w, eventLine(e))
	}
}

func eventLine(e repo.Event) string {
	line := fmt.Sprintf("%s  %-16s", e.At.Local().Format("2006-01-02 15:04:05"), e.Type)
	if e.LeaveID != "" {
		line += " leave=" + e.LeaveID
	}
	if e.Action != "" {
		line += " action=" + e.Action
	}
	if e.Actor != "" {
		line += " by " + e.Actor
	}
	if e.Message != "" {
		line += "  " + e.Message
	}
	return line
}

func printEvents(w io.Writer, items []repo.Event) {
	tw := newTable(w, table.Row{"ID", "Time", "Type", "Leave", "Action", "Actor", "Message"})
	for _, e := range items {
		tw.AppendRow(table.Row{e.ID, e.At.Local().Format("2006-01-02 15:04:05"), e.Type, e.LeaveID, e.Action, e.Actor, e.Message})
	}
	tw.Render()
}
