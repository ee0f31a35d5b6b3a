package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wasa-rockoon/wcbus/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulated node pair until interrupted",
	Long: `Run starts two simulated bus nodes wired over an in-memory UART
daisy-chain, each ticking its own heartbeat/sanity sweep and publishing a
telemetry reading once a second, and serves both nodes' bus health as
Prometheus metrics at --metrics-addr until interrupted.

Examples:
  wcbus-node run
  wcbus-node run --metrics-addr :9191`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	logger.Banner("wcbus-node", version)
	a, b := newSimulatedPair()

	reg := prometheus.NewRegistry()
	reg.MustRegister(a.Collector, b.Collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.run(ctx)
	b.run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: metricsAddr, Handler: mux}

	serverDone := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	logger.Info("wcbus-node: simulated pair running, metrics at http://%s/metrics", metricsAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("wcbus-node: shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			return err
		}
	}

	cancel()
	return httpSrv.Close()
}
