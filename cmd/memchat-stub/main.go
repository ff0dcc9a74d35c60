package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"memchat/internal/stubserver"
)

const (
	defaultAddr    = ":5000"
	defaultEnvFile = ".env"
)

type stubConfig struct {
	addr       string
	origins    []string
	failWith   int
	logJSON    bool
	logRequest bool
}

func parseFlags(args []string) (stubConfig, error) {
	flags := flag.NewFlagSet("memchat-stub", flag.ContinueOnError)
	cfg := stubConfig{}
	origins := envOr("MEMCHAT_STUB_ORIGINS", "*")

	flags.StringVar(&cfg.addr, "addr", envOr("MEMCHAT_STUB_ADDR", defaultAddr), "Listen address")
	flags.StringVar(&origins, "origins", origins, "Comma-separated allowed CORS origins")
	flags.IntVar(&cfg.failWith, "fail-with", envOrInt("MEMCHAT_STUB_FAIL_WITH", 0), "Answer every chat request with this HTTP status (0 disables)")
	flags.BoolVar(&cfg.logJSON, "log-json", envOrBool("MEMCHAT_STUB_LOG_JSON", false), "Emit JSON logs")
	flags.BoolVar(&cfg.logRequest, "log-requests", envOrBool("MEMCHAT_STUB_LOG_REQUESTS", true), "Log every HTTP request")
	if err := flags.Parse(args); err != nil {
		return stubConfig{}, err
	}

	cfg.addr = strings.TrimSpace(cfg.addr)
	if cfg.addr == "" {
		cfg.addr = defaultAddr
	}
	cfg.origins = splitList(origins)
	if cfg.failWith != 0 && (cfg.failWith < 400 || cfg.failWith > 599) {
		return stubConfig{}, fmt.Errorf("fail-with must be a 4xx or 5xx status, got %d", cfg.failWith)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return parsed
}

func newLogger(jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newHTTPServer(cfg stubConfig, logger *slog.Logger) *http.Server {
	stub := stubserver.New(nil, stubserver.Options{
		AllowedOrigins: cfg.origins,
		FailWith:       cfg.failWith,
		RequestLogging: cfg.logRequest,
		Logger:         logger,
	})
	return &http.Server{
		Addr:         cfg.addr,
		Handler:      stub.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func main() {
	if err := loadDotEnv(envOr("MEMCHAT_ENV_FILE", defaultEnvFile)); err != nil {
		fmt.Fprintf(os.Stderr, "memchat-stub: %v\n", err)
		os.Exit(1)
	}
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "memchat-stub: %v\n", err)
		os.Exit(2)
	}
	logger := newLogger(cfg.logJSON)
	slog.SetDefault(logger)

	server := newHTTPServer(cfg, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("stub listening", "addr", cfg.addr, "origins", strings.Join(cfg.origins, ","), "fail_with", cfg.failWith)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen failed", "addr", cfg.addr, "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
