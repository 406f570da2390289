package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sceneguard/internal/ledger"
)

var (
	ledgerPath       string
	ledgerScene      string
	ledgerTerminated bool
	ledgerLimit      int
	ledgerFormat     string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerSummaryCmd)
	ledgerCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "Path to verdict ledger (default: ~/.sceneguard/ledger.db)")
	ledgerCmd.PersistentFlags().StringVarP(&ledgerFormat, "format", "f", "text", "Output format (text|json)")
	ledgerCmd.Flags().StringVar(&ledgerScene, "scene", "", "Only verdicts of this scene")
	ledgerCmd.Flags().BoolVar(&ledgerTerminated, "terminated", false, "Only sessions the guard stopped")
	ledgerCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 20, "Number of recent verdicts to show (0 = all)")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List recorded verdicts",
	Long:  "Shows the final verdicts of check, stream and generate runs, newest first.",
	Args:  cobra.NoArgs,
	RunE:  runLedger,
}

var ledgerSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Aggregate counts over all recorded verdicts",
	Args:  cobra.NoArgs,
	RunE:  runLedgerSummary,
}

func openLedger() (*ledger.Ledger, error) {
	path := ledgerPath
	if path == "" {
		path = ledger.DefaultPath()
	}
	return ledger.Open(path)
}

func runLedger(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.List(cmd.Context(), ledger.Filter{
		Scene:          ledgerScene,
		TerminatedOnly: ledgerTerminated,
		Limit:          ledgerLimit,
	})
	if err != nil {
		return err
	}
	if ledgerFormat == "json" {
		printJSON(cmd.OutOrStdout(), entries)
		return nil
	}
	writeLedger(cmd.OutOrStdout(), entries)
	return nil
}

func writeLedger(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No verdicts recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tSESSION\tSCENE\tSOURCE\tLENGTH\tSTATUS\tVIOLATIONS")
	for _, e := range entries {
		status := "complete"
		switch {
		case e.EndReached:
			status = "end"
		case e.Terminated:
			status = "stopped"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d (%d critical)\n",
			e.RecordedAt.Format("2006-01-02 15:04:05"), e.SessionID, e.Scene, e.Source,
			e.Length, status, e.Violations, e.Critical)
	}
	tw.Flush()
}

func runLedgerSummary(cmd *cobra.Command, args []string) error {
	l, err := openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	s, err := l.Summarize(cmd.Context())
	if err != nil {
		return err
	}
	if ledgerFormat == "json" {
		printJSON(cmd.OutOrStdout(), s)
		return nil
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Sessions:    %d\n", s.Sessions)
	fmt.Fprintf(w, "Stopped:     %d\n", s.Terminated)
	fmt.Fprintf(w, "End reached: %d\n", s.EndReached)
	fmt.Fprintf(w, "Violations:  %d (%d critical)\n", s.Violations, s.Critical)
	return nil
}
