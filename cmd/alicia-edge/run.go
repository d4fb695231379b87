package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/longregen/alicia-edge/internal/adapters/credstore"
	"github.com/longregen/alicia-edge/internal/adapters/gateway"
	httpadapter "github.com/longregen/alicia-edge/internal/adapters/http"
	"github.com/longregen/alicia-edge/internal/adapters/id"
	"github.com/longregen/alicia-edge/internal/adapters/player"
	"github.com/longregen/alicia-edge/internal/adapters/vendor"
	"github.com/longregen/alicia-edge/internal/application"
	"github.com/longregen/alicia-edge/internal/orchestrator"
	"github.com/longregen/alicia-edge/internal/playback"
	"github.com/longregen/alicia-edge/pkg/otel"
)

const shutdownTimeout = 5 * time.Second

// runCmd starts the assistant runtime
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the assistant runtime",
		Long: `Start the assistant: connect to the gateway, activate the device if it
has no account yet, and serve the local debug API when ALICIA_EDGE_DEBUG_ADDR
is set.

The runtime stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(cmd.Context())
		},
	}
}

func runDevice(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := otel.Init(otel.Config{
		ServiceName:    "alicia-edge",
		ServiceVersion: version,
		Environment:    cfg.Observability.Environment,
		DeviceID:       cfg.Device.MAC,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		StdoutTraces:   cfg.Observability.StdoutTraces,
		LogLevel:       cfg.SlogLevel(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	slog.SetDefault(telemetry.Logger)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(sctx); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	}()

	slog.Info("starting alicia-edge",
		"version", version,
		"gateway", cfg.Gateway.URL,
		"credentials", cfg.Device.CredentialsPath,
		"debug_server", boolStatus(cfg.IsDebugServerEnabled()),
	)

	assistant, err := buildAssistant()
	if err != nil {
		return err
	}
	defer assistant.Close()

	if err := assistant.Start(); err != nil {
		return fmt.Errorf("failed to start assistant: %w", err)
	}
	assistant.NetworkConnected()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.IsDebugServerEnabled() {
		server := httpadapter.NewServer(httpadapter.Config{
			Addr:        cfg.Observability.DebugAddr,
			ServiceName: "alicia-edge",
			Version:     version,
			Token:       cfg.Observability.DebugToken,
		}, assistant)

		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Stop(sctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down alicia-edge")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildAssistant wires the adapters into the assistant without starting it.
func buildAssistant() (*application.Assistant, error) {
	store := credstore.New(cfg.Device.CredentialsPath)

	device, err := vendor.New(cfg.Identity(), store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vendor: %w", err)
	}

	session, err := orchestrator.New(cfg.Session(), device, id.New(), gateway.NewFactory(cfg.Transport()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}

	arbiter, err := playback.New(player.NewEngine(cfg.PlayerEngine()), cfg.Arbiter())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback: %w", err)
	}

	assistant, err := application.New(cfg.Assistant(), session, arbiter, device, store)
	if err != nil {
		arbiter.Close()
		return nil, fmt.Errorf("failed to initialize assistant: %w", err)
	}
	return assistant, nil
}
