package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lampctl/lampctl/pkg/engine"
	"github.com/lampctl/lampctl/pkg/stores"
)

func newJournalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect past provisioning runs",
	}
	cmd.AddCommand(newJournalListCommand())
	cmd.AddCommand(newJournalShowCommand())
	return cmd
}

func newJournalListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if a.store == nil {
				return fmt.Errorf("journal store is not configured or unavailable")
			}

			runs, err := a.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(runs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tINTENT\tSITE\tPHP\tSTATE\tSTARTED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.ID, run.IntentKind, run.SiteName, run.PHPVersion,
					colorState(run.State), run.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")

	return cmd
}

func newJournalShowCommand() *cobra.Command {
	var audit bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the journal of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if a.store == nil {
				return fmt.Errorf("journal store is not configured or unavailable")
			}

			runID := args[0]
			entries, err := a.store.ListJournal(cmd.Context(), runID)
			if err != nil {
				return err
			}

			if audit {
				events, err := a.store.ListAudit(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(struct {
						Journal []*stores.JournalRecord `json:"journal"`
						Audit   []*stores.AuditRecord   `json:"audit"`
					}{entries, events})
				}
				printJournal(entries)
				printAudit(events)
				return nil
			}

			if jsonOutput {
				return printJSON(entries)
			}
			printJournal(entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&audit, "audit", false, "include the audit trail")

	return cmd
}

func printJournal(entries []*stores.JournalRecord) {
	if len(entries) == 0 {
		fmt.Println("no journal entries for this run")
		return
	}
	for i, e := range entries {
		marker := ""
		if e.Irreversible {
			marker = " [irreversible]"
		}
		fmt.Printf("%2d. %s [%s] %s (%s)%s\n",
			i+1, e.OperationID, e.Kind, e.Description, e.Outcome, marker)
	}
}

func printAudit(events []*stores.AuditRecord) {
	if len(events) == 0 {
		return
	}
	fmt.Println("\naudit trail:")
	for _, ev := range events {
		fmt.Printf("  %s %-16s %s/%s by %s", ev.Timestamp.Format("15:04:05"),
			ev.Outcome, ev.Kind, ev.OperationID, ev.Actor)
		if ev.Detail != "" {
			fmt.Printf(": %s", ev.Detail)
		}
		fmt.Println()
	}
}

func colorState(state string) string {
	switch engine.RunState(state) {
	case engine.RunStateCompleted:
		return color.GreenString(state)
	case engine.RunStateRolledBack:
		return color.YellowString(state)
	case engine.RunStateRollbackIncomplete:
		return color.RedString(state)
	}
	return state
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
