package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/plan-feasibility/internal/api"
	"github.com/danielpatrickdp/plan-feasibility/internal/codec"
	"github.com/danielpatrickdp/plan-feasibility/internal/orchestrator"
	"github.com/danielpatrickdp/plan-feasibility/internal/replay"
	"github.com/danielpatrickdp/plan-feasibility/internal/state"
)

var serveFixture string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `serve runs the HTTP API on the configured address. Sessions whose
candidates carry no inline observations are served by the remote observation
service at observer_addr. With --fixture, the fixture's observations are also
served over gRPC on grpc_addr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFixture, "fixture", "", "also serve this fixture's observations over gRPC")
}

func runServe(cmd *cobra.Command, _ []string) error {
	g, err := newGate()
	if err != nil {
		return err
	}
	store, err := state.NewStore(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	handlers := api.NewHandlers(g, store, cfg.MaxAttempts, logger)
	if cfg.ObserverAddr != "" {
		client, err := codec.NewObservationClient(cfg.ObserverAddr, cfg.ObserverTimeout)
		if err != nil {
			return err
		}
		defer client.Close()
		handlers.WithRemoteProvider(client)
	}

	var fixtureProvider *replay.Provider
	if serveFixture != "" {
		f, err := replay.LoadFixture(serveFixture)
		if err != nil {
			return err
		}
		fixtureProvider = replay.NewProvider(f)
	}

	gin.SetMode(gin.ReleaseMode)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.Go(func() error {
		logger.Info("http api listening", "addr", cfg.HTTPAddr, "db", cfg.DB, "observer", cfg.ObserverAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if fixtureProvider != nil {
		eg.Go(func() error {
			return serveObservations(ctx, cfg.GRPCAddr, fixtureProvider)
		})
	}

	return eg.Wait()
}

// serveObservations serves provider over gRPC on addr until ctx is done.
func serveObservations(ctx context.Context, addr string, provider orchestrator.ObservationProvider) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	codec.RegisterObservationService(srv, provider, logger)

	stop := context.AfterFunc(ctx, srv.GracefulStop)
	defer stop()

	logger.Info("observation service listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}
