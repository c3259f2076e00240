package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/weft-dev/weft/pkg/devtools"
	"github.com/weft-dev/weft/pkg/observe"
	"github.com/weft-dev/weft/pkg/weft"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live graph inspector",
		Long: `Start the devtools inspector with a demo runtime attached.

The demo runtime is a small clock graph whose signals are written every
--interval, so the event stream and the metrics show live traffic.

Endpoints:
  /api/runtimes                 registered runtimes
  /api/runtimes/{id}/graph      dependency graph dump
  /api/runtimes/{id}/graph.dot  Graphviz DOT export
  /api/runtimes/{id}/events     websocket event stream
  /metrics                      Prometheus metrics

Examples:
  weft serve
  weft serve --addr=:9000 --interval=250ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, interval)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":6060", "Address to listen on")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Demo runtime write interval")

	return cmd
}

func runServe(addr string, interval time.Duration) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	promRegistry := prometheus.NewRegistry()
	metrics := observe.NewMetrics(observe.WithRegistry(promRegistry))

	rt := weft.NewRuntime(weft.WithObserver(metrics), weft.WithLogger(logger))
	defer rt.Dispose()

	registry := devtools.NewRegistry()
	id := registry.Register("demo", rt)

	stop := startDemo(rt, interval)
	defer stop()

	inspector := devtools.New(&devtools.Config{
		Registry: registry,
		Logger:   logger,
	})

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	r.Mount("/", inspector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	printBanner()
	fmt.Println("  serve")
	fmt.Println()
	info("runtimes:  http://%s/api/runtimes", displayAddr(addr))
	info("graph:     http://%s/api/runtimes/%s/graph", displayAddr(addr), id)
	info("events:    ws://%s/api/runtimes/%s/events", displayAddr(addr), id)
	info("metrics:   http://%s/metrics", displayAddr(addr))
	fmt.Println()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n\n  Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			errorMsg("shutdown: %s", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	success("stopped")
	return nil
}

// startDemo builds a small clock graph on rt and writes it on a ticker.
// The returned stop function waits for the writer goroutine to exit, so
// it is safe to dispose the runtime afterwards.
func startDemo(rt *weft.Runtime, interval time.Duration) func() {
	ticks := weft.CreateRWSignal(rt, 0, weft.SignalName[int]("ticks"))
	clock := weft.CreateRWSignal(rt, time.Now().Format(time.TimeOnly), weft.SignalName[string]("clock"))

	weft.CreateMemo(rt, func() string {
		return (time.Duration(ticks.Get()) * interval).Round(time.Millisecond).String()
	}, weft.MemoName[string]("uptime"))
	parity := weft.CreateMemo(rt, func() string {
		if ticks.Get()%2 == 0 {
			return "even"
		}
		return "odd"
	}, weft.MemoName[string]("parity"))

	weft.CreateEffect(rt, func() weft.Cleanup {
		_ = clock.Get()
		_ = parity.Get()
		return nil
	}, weft.EffectName("status"))

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				rt.Batch(func() {
					ticks.Update(func(n int) int { return n + 1 })
					clock.Set(time.Now().Format(time.TimeOnly))
				})
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// displayAddr makes a listen address printable as a URL host.
func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
