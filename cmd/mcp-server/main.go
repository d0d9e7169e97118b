package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/mcp-dbgateway/internal/config"
	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
	"github.com/malbeclabs/mcp-dbgateway/internal/logger"
	"github.com/malbeclabs/mcp-dbgateway/internal/mcp/server"
	"github.com/malbeclabs/mcp-dbgateway/internal/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:8010"
	defaultMetricsAddr = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	configFlag := flag.String("config", "", "path to the config file (or set CONFIG_FILE env var, default config.yml)")
	transportFlag := flag.String("transport", server.TransportStdio, "MCP transport (stdio, http)")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address (http transport only)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (empty to disable)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("mcp-server %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logger.New(*verboseFlag)

	configPath := *configFlag
	if configPath == "" {
		configPath = config.Path()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsServerErrCh := make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	allowedTokens := allowedTokensFromEnv(log)

	clock := clockwork.NewRealClock()
	factory, err := gateway.NewFactory(cfg.Connection(), gateway.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create client factory: %w", err)
	}
	gw, err := gateway.New(gateway.Config{
		Logger:  log,
		Clock:   clock,
		Factory: factory,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	log.Info("server: database configured",
		"backend", gw.Backend(),
		"addr", cfg.Connection().Addr(),
		"database", cfg.DB.Database,
		"toolPrefix", cfg.MCP.ToolPrefix,
	)

	srv, err := server.New(server.Config{
		Logger:        log,
		Clock:         clock,
		Gateway:       gw,
		Version:       version,
		ToolPrefix:    cfg.MCP.ToolPrefix,
		DBDescription: cfg.MCP.DBDescription,
		Transport:     *transportFlag,
		ListenAddr:    *listenAddrFlag,
		AllowedTokens: allowedTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("server: shutting down", "reason", ctx.Err())
		return <-serverErrCh
	case err := <-serverErrCh:
		if err != nil {
			log.Error("server: server error causing shutdown", "error", err)
		}
		return err
	case err := <-metricsServerErrCh:
		log.Error("server: metrics server error causing shutdown", "error", err)
		return err
	}
}

// allowedTokensFromEnv parses MCP_ALLOWED_TOKENS (comma-separated). Auth can be
// explicitly disabled with MCP_AUTH_DISABLED=true.
func allowedTokensFromEnv(log *slog.Logger) []string {
	if os.Getenv("MCP_AUTH_DISABLED") == "true" {
		log.Info("mcp server: authentication explicitly disabled")
		return nil
	}
	tokensEnv := os.Getenv("MCP_ALLOWED_TOKENS")
	if tokensEnv == "" {
		log.Info("mcp server: authentication disabled (no tokens configured)")
		return nil
	}
	var allowedTokens []string
	for token := range strings.SplitSeq(tokensEnv, ",") {
		token = strings.TrimSpace(token)
		if token != "" {
			allowedTokens = append(allowedTokens, token)
		}
	}
	if len(allowedTokens) > 0 {
		log.Info("mcp server: token authentication enabled", "token_count", len(allowedTokens))
	}
	return allowedTokens
}
