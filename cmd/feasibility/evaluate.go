package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/plan-feasibility/internal/gate"
	"github.com/danielpatrickdp/plan-feasibility/internal/observation"
)

var evaluateJSON bool

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [OBSERVATIONS.json | -]",
	Short: "Evaluate one observation set and print the verdict",
	Long: `evaluate reads a JSON object keyed by domain (pipeline_health, manpower,
safety, backup, schedule, budget) and prints whether the plan is feasible and
every blocking reason in domain order. Missing domains block the plan.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "output the verdict as JSON")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	set, err := observation.DecodeSet(raw)
	if err != nil {
		return err
	}
	g, err := newGate()
	if err != nil {
		return err
	}

	v := g.Evaluate(set)
	if evaluateJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	printVerdict(cmd.OutOrStdout(), v)
	return nil
}

func printVerdict(w io.Writer, v gate.Verdict) {
	if v.Feasible {
		fmt.Fprintln(w, "FEASIBLE")
		return
	}
	fmt.Fprintln(w, "NOT FEASIBLE")
	for _, r := range v.Reasons {
		fmt.Fprintf(w, "  [%s] %s\n", r.Code, r.String())
	}
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return raw, nil
}
