package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/plan-feasibility/internal/logging"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
	"github.com/danielpatrickdp/plan-feasibility/internal/state"
)

var (
	inspectLast    int
	inspectRequest string
	inspectJSON    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [SESSION_ID]",
	Short: "List stored sessions or show one session's history",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent sessions")
	inspectCmd.Flags().StringVar(&inspectRequest, "request", "", "only sessions for this request ID")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of table")
}

func runInspect(cmd *cobra.Command, args []string) error {
	store, err := state.NewStore(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return runDetailMode(cmd, store, args[0])
	}
	return runListMode(cmd, store)
}

// #region list-mode

func runListMode(cmd *cobra.Command, store *state.Store) error {
	list, err := store.ListSessions(cmd.Context(), inspectRequest, inspectLast)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if inspectJSON {
		return writeJSON(w, list)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tREQUEST\tREASON\tCANDIDATE\tEVALS\tFINISHED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.SessionID, s.RequestID, s.Reason, s.CandidateID, s.Attempts, s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// #endregion list-mode

// #region detail-mode

type detail struct {
	Session     orchestrator.SessionResult `json:"session"`
	Transitions []logging.ProvenanceEntry  `json:"transitions"`
}

func runDetailMode(cmd *cobra.Command, store *state.Store, id string) error {
	res, err := store.GetSession(cmd.Context(), id)
	if err != nil {
		return err
	}
	entries, err := store.Transitions(cmd.Context(), id)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if inspectJSON {
		return writeJSON(w, detail{Session: res, Transitions: entries})
	}

	fmt.Fprintf(w, "Session:   %s\n", res.SessionID)
	fmt.Fprintf(w, "Request:   %s\n", res.RequestID)
	fmt.Fprintf(w, "Reason:    %s\n", res.Reason)
	fmt.Fprintf(w, "Candidate: %s (index %d)\n", res.CandidateID, res.PlanIndex)
	fmt.Fprintf(w, "Duration:  %s\n", res.FinishedAt.Sub(res.StartedAt))

	for i, v := range res.History {
		status := "feasible"
		if !v.Feasible {
			status = "blocked"
		}
		fmt.Fprintf(w, "\nEvaluation %d: %s\n", i+1, status)
		for _, r := range v.Reasons {
			fmt.Fprintf(w, "  - %s\n", r.String())
		}
	}

	if len(entries) > 0 {
		fmt.Fprintln(w, "\nTransitions:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, e := range entries {
			fmt.Fprintf(tw, "  %d\t%s -> %s\t%s\t%s\n",
				e.Attempt, e.FromState, e.ToState, e.Decision, strings.TrimSpace(e.Reason))
		}
		tw.Flush()
	}
	return nil
}

// #endregion detail-mode

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
