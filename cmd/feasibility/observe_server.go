package main

import (
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/plan-feasibility/internal/replay"
)

var observeFixture string

var observeServerCmd = &cobra.Command{
	Use:   "observe-server",
	Short: "Serve a fixture's observations over gRPC",
	Long: `observe-server exposes the observations recorded in a replay fixture as
the feasibility.v1.ObservationService, so sessions run by "serve" (with
observer_addr pointing here) can be exercised end to end.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := replay.LoadFixture(observeFixture)
		if err != nil {
			return err
		}
		return serveObservations(cmd.Context(), cfg.GRPCAddr, replay.NewProvider(f))
	},
}

func init() {
	observeServerCmd.Flags().StringVar(&observeFixture, "fixture", "", "fixture whose observations are served")
	_ = observeServerCmd.MarkFlagRequired("fixture")
}
