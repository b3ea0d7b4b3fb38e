package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/coordinator"
	apphttp "gastos/internal/http"
	"gastos/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	coord := coordinator.New(res.Store,
		coordinator.WithTimeout(cfg.StoreTimeout),
		coordinator.WithLogger(logger.WithComponent(log.ComponentCoordinator)))

	// A failed initial load leaves the page empty and /readyz failing; the
	// operator can retry with SIGHUP.
	if err := coord.Load(ctx); err != nil {
		logger.Error("Initial load failed", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
	}

	srv := apphttp.NewServer(":"+cfg.Port, coord, apphttp.Options{
		CurrencySymbol:     cfg.CurrencySymbol,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	go reloadOnHangup(ctx, coord, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting gastos server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"events", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		cancel()
		return
	}

	logger.Info("Server stopped gracefully")
}

// reloadOnHangup re-reads the whole collection from the store on SIGHUP.
func reloadOnHangup(ctx context.Context, coord *coordinator.Coordinator, logger *log.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := coord.Reload(ctx); err != nil {
				logger.Error("Reload failed", log.FieldError, err, log.FieldOperation, log.OpLoad)
				continue
			}
			logger.Info("Reloaded expenses", log.FieldCount, coord.View().Summary.Count)
		}
	}
}
