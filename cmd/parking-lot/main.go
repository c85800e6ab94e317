package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parking-lot/internal/config"
	"parking-lot/internal/logging"
	"parking-lot/internal/parking"
	"parking-lot/internal/server"
)

var (
	mode = flag.String("mode", "", "Mode to run: cli, server, or both (default $APP_MODE or cli)")
	port = flag.String("port", "", "Port for HTTP server (default $APP_PORT or 8080)")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *port != "" {
		cfg.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryProvider, err := parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName: cfg.OTelConfig.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTelConfig.OTLPEndpoint,
	})
	if err != nil {
		logging.Error(ctx, "failed to initialize telemetry", "error", err)
		os.Exit(1)
	}

	// stdout belongs to the shell.
	logging.InitWithWriter(os.Stderr, cfg.OTelConfig.ServiceName, cfg.Environment)

	rates := parking.NewRates(
		cfg.Billing.HourlyRate,
		cfg.Billing.VIPDiscountPercent,
		cfg.Billing.MinimumHours,
		cfg.Billing.CurrencyPrecision,
	)

	lot, err := parking.NewInstrumentedParkingLot(cfg.Capacity, telemetryProvider, parking.WithRates(rates))
	if err != nil {
		logging.Error(ctx, "failed to create parking lot", "capacity", cfg.Capacity, "error", err)
		shutdownTelemetry(telemetryProvider)
		os.Exit(1)
	}
	logging.Info(ctx, "parking lot ready", "capacity", cfg.Capacity, "mode", cfg.Mode)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	switch cfg.Mode {
	case "cli":
		runCLI(ctx, cancel, telemetryProvider, lot, sigChan)
	case "server":
		runServer(ctx, cancel, cfg, telemetryProvider, lot, sigChan)
	case "both":
		runBoth(ctx, cancel, cfg, telemetryProvider, lot, sigChan)
	default:
		logging.Error(ctx, "invalid mode, must be cli, server, or both", "mode", cfg.Mode)
		shutdownTelemetry(telemetryProvider)
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, cancel context.CancelFunc, telemetryProvider *parking.TelemetryProvider, lot *parking.InstrumentedParkingLot, sigChan chan os.Signal) {
	go func() {
		<-sigChan
		logging.Info(ctx, "shutting down")
		cancel()
	}()

	shell := parking.NewInstrumentedShell(telemetryProvider, lot, os.Stdin, os.Stdout)
	shell.Run(ctx)

	shutdownTelemetry(telemetryProvider)
}

func newServer(cfg *config.Config, telemetryProvider *parking.TelemetryProvider, lot *parking.InstrumentedParkingLot) *server.Server {
	handler := server.NewHandler(cfg.OTelConfig.ServiceName, telemetryProvider, lot, parking.WithRates(lot.Rates()))
	return server.NewServer(cfg.Port, handler)
}

func shutdownOnSignal(ctx context.Context, cancel context.CancelFunc, srv *server.Server, sigChan chan os.Signal) {
	<-sigChan
	logging.Info(ctx, "received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server shutdown error", "error", err)
	}

	cancel()
}

func runServer(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, telemetryProvider *parking.TelemetryProvider, lot *parking.InstrumentedParkingLot, sigChan chan os.Signal) {
	srv := newServer(cfg, telemetryProvider, lot)

	go shutdownOnSignal(ctx, cancel, srv, sigChan)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error(ctx, "server error", "error", err)
	}

	shutdownTelemetry(telemetryProvider)
}

// runBoth serves HTTP and the shell against the same lot.
func runBoth(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, telemetryProvider *parking.TelemetryProvider, lot *parking.InstrumentedParkingLot, sigChan chan os.Signal) {
	srv := newServer(cfg, telemetryProvider, lot)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Start()
	}()

	cliDone := make(chan bool, 1)
	go func() {
		shell := parking.NewInstrumentedShell(telemetryProvider, lot, os.Stdin, os.Stdout)
		shell.Run(ctx)
		cliDone <- true
	}()

	go shutdownOnSignal(ctx, cancel, srv, sigChan)

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "server error", "error", err)
		}
	case <-cliDone:
		logging.Info(ctx, "CLI exited")
	case <-ctx.Done():
		logging.Info(ctx, "context cancelled")
	}

	shutdownTelemetry(telemetryProvider)
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logging.Info(ctx, "shutting down telemetry")
	if err := telemetryProvider.Shutdown(ctx); err != nil {
		logging.Error(ctx, "error shutting down telemetry", "error", err)
	}
}
