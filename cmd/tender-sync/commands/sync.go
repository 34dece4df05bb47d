package commands

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/galois26/tender-sync/internal/pipeline"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync and push the result to every configured sink",
	Long: `Run every enabled source once, then upsert the relevant tenders into the
configured sinks. With --dry-run no sink is opened; a per-source summary is
printed instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, cfg, log, syncDryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.runOnce(ctx)
		printSummary(cmd.OutOrStdout(), res)
		return err
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "do not open or write any sink")
	rootCmd.AddCommand(syncCmd)
}

func printSummary(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFOUND\tRELEVANT\tEMITTED\tERROR")
	for _, st := range res.Stats {
		errText := "-"
		if st.Err != nil {
			errText = st.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", st.Name, st.Found, st.Relevant, st.Emitted, errText)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t%d\t(run %s, %d skipped as seen)\n", len(res.Tenders), res.RunID, res.Skipped)
	_ = tw.Flush()
}
