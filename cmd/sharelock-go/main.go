// Package main is the entrypoint for the sharelock-go retrieval CLI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sharelock/sharelock-go/internal/components/share/itemcrypto"
	"github.com/sharelock/sharelock-go/internal/components/share/retrieve"
	"github.com/sharelock/sharelock-go/internal/components/share/secret"
	"github.com/sharelock/sharelock-go/internal/platform/config"
	httpclient "github.com/sharelock/sharelock-go/internal/platform/http/client"
	"github.com/sharelock/sharelock-go/internal/platform/logutil"
)

// stringList collects repeatable flag values in order.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// result is the JSON shape printed to stdout.
type result struct {
	Kind       retrieve.Kind      `json:"kind"`
	ResourceID string             `json:"resourceId"`
	Item       *itemcrypto.Item   `json:"item,omitempty"`
	Metadata   *retrieve.Metadata `json:"metadata,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	serviceURL := flag.String("service-url", "", "Share service base URL (overrides config)")
	shareSecret := flag.String("secret", "", "Share secret (read from stdin when omitted)")
	ssrfMode := flag.String("ssrf-mode", "", "SSRF protection mode: strict or off (overrides config)")
	insecureSkipVerify := flag.String("insecure-skip-verify", "", "Skip TLS verification: true or false (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, error (overrides config)")
	loggingFormat := flag.String("logging-format", "", "Log format: json or text (overrides config)")
	timeout := flag.Duration("timeout", 0, "Overall retrieval timeout (0 disables)")
	var identityTokens stringList
	flag.Var(&identityTokens, "identity-token", "Identity token to try, in preference order (repeatable)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ServiceURL:         serviceURL,
			SSRFMode:           ssrfMode,
			InsecureSkipVerify: insecureSkipVerify,
			LoggingLevel:       loggingLevel,
			LoggingFormat:      loggingFormat,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		return 1
	}
	if cfg.ServiceURL == "" {
		bootstrapLogger.Error("no service URL configured; set service_url or pass -service-url")
		return 1
	}

	logger := newLogger(cfg.Logging)

	secretValue := *shareSecret
	if secretValue == "" {
		secretValue, err = readSecretFromStdin()
		if err != nil {
			logger.Error("failed to read share secret from stdin", "error", err)
			return 1
		}
	}

	// Cancellation covers the whole attempt sequence, not just the in-flight
	// request: an orphaned attempt could still count as a view.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	orchestrator := retrieve.NewOrchestrator(
		secret.NewResolver(),
		retrieve.NewClient(
			httpclient.NewContextClient(httpclient.New(&cfg.OutboundHTTP)),
			cfg.ServiceURL,
			itemcrypto.NewDecryptor(),
			logger,
		),
		logger,
	)

	outcome, err := orchestrator.Retrieve(ctx, secretValue, identityTokens)
	if err != nil {
		logger.Error("share retrieval failed", "reason", retrieve.ReasonOf(err), "error", err)
		return 1
	}

	out := result{
		Kind:       outcome.Kind,
		ResourceID: outcome.ResourceID,
		Item:       outcome.Item,
		Metadata:   outcome.Metadata,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("failed to encode result", "error", err)
		return 1
	}

	if outcome.Kind != retrieve.KindSuccess {
		return 2
	}
	return 0
}

// newLogger builds the configured slog logger on stderr, keeping stdout for
// the retrieval result.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logutil.ParseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// readSecretFromStdin reads a single-line share secret so it never appears
// in shell history or process listings.
func readSecretFromStdin() (string, error) {
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", errors.New("no share secret provided")
	}
	return strings.TrimSpace(line), nil
}
