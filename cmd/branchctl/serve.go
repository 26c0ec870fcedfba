package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// runServeCommand starts a long-running process exposing Prometheus
// metrics over HTTP until interrupted. It wires the same dependencies as
// every other subcommand; the metrics it serves are the ones recorded by the
// telemetry package within this process.
func runServeCommand(args []string) error {
	a, err := initDependencies()
	if err != nil {
		return err
	}
	defer a.Close()

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	bind := fs.String("bind", "127.0.0.1:9090", "address to bind the metrics HTTP server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !a.cfg.Metrics.Enabled {
		return fmt.Errorf("metrics are disabled in configuration; enable metrics.enabled to serve")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              *bind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	fmt.Printf("serving metrics on http://%s/metrics\n", *bind)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
