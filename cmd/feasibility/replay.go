package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
	"github.com/danielpatrickdp/plan-feasibility/internal/replay"
	"github.com/danielpatrickdp/plan-feasibility/internal/state"
)

var (
	replayJSON   bool
	replayRecord bool
)

var replayCmd = &cobra.Command{
	Use:     "replay FIXTURE.json...",
	Aliases: []string{"run"},
	Short:   "Replay recorded fixtures through retry sessions",
	Long: `replay runs each fixture's candidates through a real session using the
observations recorded in the fixture, and compares the outcome with the
fixture's expectation. Exits 3 if any fixture does not match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "output results as JSON")
	replayCmd.Flags().BoolVar(&replayRecord, "record", false, "store replayed sessions in the configured database")
}

// #region run

func runReplay(cmd *cobra.Command, args []string) error {
	g, err := newGate()
	if err != nil {
		return err
	}
	opts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if replayRecord {
		store, err := state.NewStore(cfg.DB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, orchestrator.WithRecorder(store))
	}

	results := make([]replay.Result, 0, len(args))
	for _, path := range args {
		f, err := replay.LoadFixture(path)
		if err != nil {
			return err
		}
		res, err := replay.Run(cmd.Context(), f, g, opts...)
		if err != nil {
			return err
		}
		if res.Description == "" {
			res.Description = path
		}
		results = append(results, res)
	}

	if replayJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printReplay(cmd.OutOrStdout(), results)
	}

	if sum := replay.Summarize(results); sum.Failed > 0 {
		return fmt.Errorf("%w: %d of %d fixtures", errMismatch, sum.Failed, sum.Total)
	}
	return nil
}

// #endregion run

// #region output

func printReplay(w io.Writer, results []replay.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIXTURE\tREASON\tPLAN\tEVALS\tRESULT")
	for _, r := range results {
		status := "ok"
		if !r.Passed() {
			status = "MISMATCH"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			r.Description, r.Session.Reason, r.Session.PlanIndex, len(r.Session.History), status)
	}
	tw.Flush()

	for _, r := range results {
		if r.Passed() {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n  %s\n", r.Description, strings.Join(r.Mismatches, "\n  "))
	}

	sum := replay.Summarize(results)
	fmt.Fprintf(w, "\n%d fixtures, %d passed, %d failed\n", sum.Total, sum.Passed, sum.Failed)
}

// #endregion output
