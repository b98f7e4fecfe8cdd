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

	"github.com/sirupsen/logrus"

	"bagwatch/internal/config"
	"bagwatch/internal/detection"
	"bagwatch/internal/metadata"
	"bagwatch/internal/notify"
	"bagwatch/internal/observability"
	"bagwatch/internal/orchestrator"
	"bagwatch/internal/solana"
)

func main() {
	cfg := config.Load()

	// Flags override environment configuration.
	rpcEndpoint := flag.String("rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", cfg.WSEndpoint, "Solana WebSocket endpoint")
	authority := flag.String("authority", cfg.UpdateAuthority, "Launchpad metadata update authority to watch")
	pollInterval := flag.Duration("poll-interval", cfg.PollInterval, "Safety-net polling cadence")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	cfg.RPCEndpoint = *rpcEndpoint
	cfg.WSEndpoint = *wsEndpoint
	cfg.UpdateAuthority = *authority
	cfg.PollInterval = *pollInterval
	cfg.MetricsAddr = *metricsAddr
	cfg.LogLevel = *logLevel

	setupLogging(cfg.LogLevel)
	log := logrus.WithField("component", "main")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go trackUptime(ctx)

	done := make(chan error, 1)
	go handleSignals(cancel, done, log)

	err := run(ctx, cfg, log)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("watcher failed")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithTimeout(cfg.AdapterTimeout))

	wsConfig := solana.DefaultWSConfig()
	wsConfig.ReconnectDelay = cfg.ReconnectDelay
	ws, err := solana.DialWS(ctx, cfg.WSEndpoint, &wsConfig)
	if err != nil {
		return err
	}
	defer ws.Close()

	log.WithFields(logrus.Fields{
		"authority": cfg.UpdateAuthority,
		"rpc":       cfg.RPCEndpoint,
	}).Info("starting launch watcher")

	runner := orchestrator.NewRunner(orchestrator.RunnerOptions{
		Detectors: []detection.Detector{
			detection.NewStreamDetector(ws, rpc, cfg.UpdateAuthority),
			detection.NewPollDetector(rpc, cfg.UpdateAuthority,
				detection.WithPollInterval(cfg.PollInterval),
				detection.WithSignatureLimit(cfg.PollSignatureLimit)),
		},
		AssetSource:  metadata.NewAssetSource(rpc),
		URIDocSource: metadata.NewURIDocSource(rpc, nil),
		FeeSplitSource: metadata.NewFeeSplitSource(
			metadata.NewHTTPPageFetcher(nil, ""),
			metadata.WithMaxRoyaltyPercent(cfg.MaxRoyaltyPercent)),
		Notifier:       notify.NewLogNotifier(),
		AdapterTimeout: cfg.AdapterTimeout,
	})

	return runner.Run(ctx)
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

func serveMetrics(addr string, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	log.WithField("addr", addr).Info("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server failed")
	}
}

func trackUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.RecordUptimeTick()
		}
	}
}

func handleSignals(cancel context.CancelFunc, done <-chan error, log *logrus.Entry) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.WithField("signal", sig).Info("initiating graceful shutdown")
	cancel()

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Warn("forcing immediate shutdown")
		os.Exit(1)
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timed out, forcing exit")
		os.Exit(1)
	case <-done:
	}
}
