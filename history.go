package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sudankdk/judge/internal/model"
	"github.com/sudankdk/judge/internal/storage"
	"github.com/sudankdk/judge/internal/storage/sqlite"
)

var (
	historyLimit    int
	historyStatus   string
	historyLanguage string
)

var historyCmd = &cobra.Command{
	Use:   "history [job-id]",
	Short: "List recorded submissions, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max submissions to show")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status")
	historyCmd.Flags().StringVar(&historyLanguage, "language", "", "filter by language")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Storage.DBPath == "" {
		return errors.New("submission history is disabled; set storage.db_path")
	}
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if len(args) == 1 {
		sub, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Job:      %s\n", sub.JobID)
		fmt.Fprintf(out, "Language: %s\n", sub.Language)
		fmt.Fprintf(out, "Status:   %s\n", sub.Status)
		if sub.ExitCode != nil {
			fmt.Fprintf(out, "Exit:     %d\n", *sub.ExitCode)
		}
		fmt.Fprintf(out, "Duration: %dms\n", sub.DurationMS)
		fmt.Fprintf(out, "Created:  %s\n", sub.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if sub.Diagnostic != "" {
			fmt.Fprintf(out, "\n--- error ---\n%s\n", sub.Diagnostic)
		}
		if sub.Stdout != "" {
			fmt.Fprintf(out, "\n--- stdout ---\n%s", sub.Stdout)
		}
		return nil
	}

	subs, err := store.List(ctx, storage.ListOptions{
		Language: historyLanguage,
		Status:   model.Status(historyStatus),
		Limit:    historyLimit,
	})
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Fprintln(out, "No submissions found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLANGUAGE\tSTATUS\tDURATION\tCREATED")
	for _, s := range subs {
		id := s.JobID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", id, s.Language, s.Status, s.DurationMS, s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
