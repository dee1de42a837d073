package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/acme/click-to-call/internal/domain"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		host    string
		timeout time.Duration
	)
	client := func() *apiClient { return newAPIClient(host, timeout) }

	root := &cobra.Command{
		Use:           "callctl",
		Short:         "Operate the click-to-call service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&host, "host", envOr("CALLCTL_HOST", "http://localhost:5000"), "base URL of the API")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	root.SetOut(out)

	callCmd := &cobra.Command{
		Use:   "call",
		Short: "Request a click-to-call bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			id, _ := cmd.Flags().GetString("id")
			res, err := client().placeCall(cmd.Context(), from, to, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Status, res.CorrelationID)
			return nil
		},
	}
	callCmd.Flags().String("from", "", "number rung first (required)")
	callCmd.Flags().String("to", "", "number bridged in (required)")
	callCmd.Flags().String("id", "", "correlation id, generated when empty")
	_ = callCmd.MarkFlagRequired("from")
	_ = callCmd.MarkFlagRequired("to")

	trunksCmd := &cobra.Command{
		Use:   "trunks",
		Short: "Show trunk capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			trunks, err := client().trunks(cmd.Context())
			if err != nil {
				return err
			}
			printTrunks(cmd.OutOrStdout(), trunks)
			return nil
		},
	}

	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List calls awaiting a completion event",
		RunE: func(cmd *cobra.Command, args []string) error {
			calls, err := client().pending(cmd.Context())
			if err != nil {
				return err
			}
			printPending(cmd.OutOrStdout(), calls)
			return nil
		},
	}

	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "List recordings not downloaded yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := client().pendingRecordings(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	root.AddCommand(callCmd, trunksCmd, pendingCmd, recordingsCmd)
	return root
}

func printTrunks(out io.Writer, trunks []domain.TrunkNumber) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TRUNK\tCAPACITY\tAVAILABLE\tLOCKED")
	for _, t := range trunks {
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\n", t.ID, t.Capacity, t.Available, t.Busy)
	}
	w.Flush()
}

func printPending(out io.Writer, calls []domain.PendingCall) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TRUNK\tORIGIN\tDESTINATION\tID\tAGE")
	for _, c := range calls {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.TrunkNumber, c.OriginNumber, c.DestinationNumber, c.CorrelationID, time.Since(c.CreatedAt).Round(time.Second))
	}
	w.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
