package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	brainclouds2s "github.com/nvidia/brainclouds2s-go"
	"github.com/nvidia/brainclouds2s-go/internal/config"
	"github.com/nvidia/brainclouds2s-go/internal/logging"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default: ./brainclouds2s.yaml)")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	)
	flag.Parse()

	initLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runExample(ctx, cfg, *metricsAddr); err != nil {
		slog.Error("example exited with error", "error", err)
		os.Exit(1)
	}
}

// runExample demonstrates the full lifecycle: connect, authenticate, run a
// script request, enable RTT and subscribe to chat, then tick RunCallbacks
// until the context is cancelled.
func runExample(ctx context.Context, cfg *config.Config, metricsAddr string) error {
	var registerer prometheus.Registerer
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		registerer = reg
		go serveMetrics(metricsAddr, reg)
	}

	autoAuth := cfg.AutoAuth
	s2sCtx := brainclouds2s.NewContext(brainclouds2s.Options{
		AppID:        cfg.AppID,
		ServerName:   cfg.ServerName,
		ServerSecret: cfg.ServerSecret,
		URL:          cfg.DispatcherURL,
		AutoAuth:     &autoAuth,
		Registerer:   registerer,
	})
	s2sCtx.SetLogEnabled(true)
	defer s2sCtx.Destroy()

	s2sCtx.Request(
		fmt.Sprintf(`{"service":%q,"operation":%q,"data":{"scriptName":"AddTwoNumbers"}}`,
			brainclouds2s.ServiceScript, brainclouds2s.OperationRun),
		func(payload string) {
			slog.Info("script result", "payload", payload)
		},
	)

	rttSvc := s2sCtx.GetRttService()
	rttSvc.RegisterRttCallback(brainclouds2s.ServiceChat, func(payload string) {
		slog.Info("chat event", "payload", payload)
	})
	rttSvc.EnableRtt(func(err error) {
		if err != nil {
			slog.Warn("rtt connect failed", "error", err)
			return
		}
		slog.Info("rtt connected", "connectionId", rttSvc.GetRttConnectionId())
	}, cfg.RttPreferWebSocket)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down example client")
			return nil
		case <-ticker.C:
			s2sCtx.RunCallbacks(10)
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	slog.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}

func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(logging.NewRedactor(jsonHandler)))
}
