package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"memchat/internal/conversation"
	"memchat/internal/observability"
	"memchat/internal/transport"
)

const (
	defaultAPIBase     = "http://127.0.0.1:5000"
	defaultLogFile     = "memchat-tui.log"
	defaultEnvFile     = ".env"
	defaultTimeoutSecs = 30
	defaultTypingMS    = 1000
)

type appConfig struct {
	apiBase      string
	timeout      time.Duration
	typingDelay  time.Duration
	retries      int
	retryBackoff time.Duration
	logFile      string
	altScreen    bool
	markdown     bool
	healthCheck  bool
}

func parseFlags(args []string) (appConfig, error) {
	flags := flag.NewFlagSet("memchat-tui", flag.ContinueOnError)
	cfg := appConfig{}
	timeoutSeconds := envOrInt("MEMCHAT_TIMEOUT", defaultTimeoutSecs)
	typingMS := envOrInt("MEMCHAT_TYPING_DELAY_MS", defaultTypingMS)
	backoffMS := envOrInt("MEMCHAT_RETRY_BACKOFF_MS", 750)

	flags.StringVar(&cfg.apiBase, "api-base", envOr("MEMCHAT_API_BASE", defaultAPIBase), "Memory chat service base URL")
	flags.IntVar(&timeoutSeconds, "timeout", timeoutSeconds, "Per-request timeout seconds")
	flags.IntVar(&typingMS, "typing-delay", typingMS, "Cosmetic delay in ms before a reply is shown (0 disables)")
	flags.IntVar(&cfg.retries, "retries", envOrInt("MEMCHAT_RETRIES", 0), "Automatic retries on unreachable/timeout (0-3)")
	flags.IntVar(&backoffMS, "retry-backoff", backoffMS, "Delay in ms between automatic retries")
	flags.StringVar(&cfg.logFile, "log-file", envOr("MEMCHAT_LOG_FILE", defaultLogFile), "Debug log file (empty disables)")
	flags.BoolVar(&cfg.altScreen, "alt-screen", envOrBool("MEMCHAT_ALT_SCREEN", true), "Use alternate screen buffer")
	flags.BoolVar(&cfg.markdown, "markdown", envOrBool("MEMCHAT_MARKDOWN", true), "Render assistant replies as markdown")
	flags.BoolVar(&cfg.healthCheck, "health-check", envOrBool("MEMCHAT_HEALTH_CHECK", true), "Probe the service once at startup")
	if err := flags.Parse(args); err != nil {
		return appConfig{}, err
	}

	cfg.apiBase = strings.TrimSpace(cfg.apiBase)
	if cfg.apiBase == "" {
		cfg.apiBase = defaultAPIBase
	}
	cfg.timeout = time.Duration(clampInt(timeoutSeconds, 1, 120)) * time.Second
	cfg.typingDelay = time.Duration(clampInt(typingMS, 0, 5000)) * time.Millisecond
	cfg.retries = clampInt(cfg.retries, 0, 3)
	cfg.retryBackoff = time.Duration(clampInt(backoffMS, 0, 10000)) * time.Millisecond
	cfg.logFile = strings.TrimSpace(cfg.logFile)
	return cfg, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
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
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// openLogger sends slog output to path through tea.LogToFile, since stdout
// belongs to the TUI. An empty path discards logs.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := tea.LogToFile(path, "memchat-tui")
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func newController(cfg appConfig, observer observability.Observer) (*conversation.Controller, *transport.Client, error) {
	client, err := transport.New(cfg.apiBase, transport.WithTimeout(cfg.timeout))
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := conversation.New(
		client,
		conversation.WithObserver(observer),
		conversation.WithRetry(cfg.retries, cfg.retryBackoff),
	)
	if err != nil {
		return nil, nil, err
	}
	return ctrl, client, nil
}

func main() {
	if err := loadDotEnv(envOr("MEMCHAT_ENV_FILE", defaultEnvFile)); err != nil {
		fmt.Fprintf(os.Stderr, "memchat-tui: %v\n", err)
		os.Exit(1)
	}
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	logger, closeLog, err := openLogger(cfg.logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memchat-tui: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	uiLog := newUILogObserver(64)
	ctrl, client, err := newController(cfg, observability.Multi{
		observability.NewSlogObserver(logger),
		uiLog,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "memchat-tui: %v\n", err)
		os.Exit(1)
	}
	defer ctrl.Close()
	logger.Info("starting", "api_base", client.BaseURL(), "timeout", client.Timeout(), "retries", cfg.retries)

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if cfg.altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	m := newModel(cfg, ctrl, client)
	m.events = uiLog
	p := tea.NewProgram(m, opts...)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "memchat-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}
