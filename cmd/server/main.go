/*
Package main runs the financial-data gateway as a line-delimited JSON-RPC
server over stdin/stdout.

It wires the process-wide Config into a key pool and circuit breaker per
provider, builds the six provider adapters, constructs the Source Router
and Dispatcher around them, and exposes the resulting Tool Facade over two
JSON-RPC methods: tools/list (the static tool schema set) and tools/call
(invoking one facade entry point per call). It supports graceful shutdown
on SIGINT/SIGTERM.

Usage:

	FINNHUB_API_KEY=... go run ./cmd/server
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/config"
	"github.com/LeeXN/finance-gateway/internal/dispatcher"
	"github.com/LeeXN/finance-gateway/internal/facade"
	"github.com/LeeXN/finance-gateway/internal/httpx"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/provider"
	"github.com/LeeXN/finance-gateway/internal/provider/alphavantage"
	"github.com/LeeXN/finance-gateway/internal/provider/eastmoney"
	"github.com/LeeXN/finance-gateway/internal/provider/finnhub"
	"github.com/LeeXN/finance-gateway/internal/provider/sina"
	"github.com/LeeXN/finance-gateway/internal/provider/tiingo"
	"github.com/LeeXN/finance-gateway/internal/provider/twelvedata"
	"github.com/LeeXN/finance-gateway/internal/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logLevel lets an operator bump verbosity without touching the
// environment, mirroring LOG_LEVEL but taking precedence when set.
var logLevel = flag.String("log-level", "", "override LOG_LEVEL (DEBUG/INFO/WARN/ERROR)")

func main() {
	flag.Parse()

	cfg := config.Load()
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	initLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := buildFacade(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire gateway")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info().Msg("shutdown signal received, draining stdio loop")
		cancel()
	}()

	log.Info().Str("config", cfg.String()).Msg("finance-gateway listening on stdio")

	if err := serve(ctx, f, os.Stdin, os.Stdout); err != nil && err != io.EOF {
		log.Fatal().Err(err).Msg("stdio loop exited with error")
	}
}

// initLogging sets up zerolog per cfg.LogLevel, writing to stderr (stdout
// is reserved for JSON-RPC responses) and, when LOG_FILE is set, tee'ing to
// a size/age-rotated file via lumberjack.
func initLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	switch cfg.LogLevel {
	case "DEBUG":
		level = zerolog.DebugLevel
	case "WARN":
		level = zerolog.WarnLevel
	case "ERROR":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var w io.Writer = console
	if cfg.LogFile != "" {
		fileSink := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(console, fileSink)
	}
	log.Logger = log.Output(w)
}

// buildFacade wires config into key pools, circuit breakers, adapters, the
// Source Router, and the Dispatcher, and returns the resulting Tool Facade.
// A provider whose API key env var is absent (finnhub/alphavantage/
// twelvedata/tiingo) is omitted entirely, per spec.md §6's "absent ⇒
// provider unavailable" rule; sina/eastmoney are key-less and always built.
func buildFacade(cfg config.Config) (*facade.Facade, error) {
	var adapters []provider.Adapter

	if cfg.Finnhub.APIKey != "" {
		keys := keypool.New(cfg.Finnhub.APIKey, cfg.KeyRotation.ResetWindow, cfg.KeyRotation.Enabled)
		cb := newBreaker(cfg)
		client := httpx.New(cfg.Finnhub.Timeout)
		adapters = append(adapters, finnhub.New(finnhub.Config{Timeout: cfg.Finnhub.Timeout}, keys, cb, client))
	}
	if cfg.AlphaVantage.APIKey != "" {
		keys := keypool.New(cfg.AlphaVantage.APIKey, cfg.KeyRotation.ResetWindow, cfg.KeyRotation.Enabled)
		cb := newBreaker(cfg)
		client := httpx.New(cfg.AlphaVantage.Timeout)
		adapters = append(adapters, alphavantage.New(alphavantage.Config{Timeout: cfg.AlphaVantage.Timeout}, keys, cb, client))
	}
	if cfg.TwelveData.APIKey != "" {
		keys := keypool.New(cfg.TwelveData.APIKey, cfg.KeyRotation.ResetWindow, cfg.KeyRotation.Enabled)
		cb := newBreaker(cfg)
		client := httpx.New(cfg.TwelveData.Timeout)
		adapters = append(adapters, twelvedata.New(twelvedata.Config{Timeout: cfg.TwelveData.Timeout}, keys, cb, client))
	}
	if cfg.Tiingo.APIKey != "" {
		keys := keypool.New(cfg.Tiingo.APIKey, cfg.KeyRotation.ResetWindow, cfg.KeyRotation.Enabled)
		cb := newBreaker(cfg)
		client := httpx.New(cfg.Tiingo.Timeout)
		adapters = append(adapters, tiingo.New(tiingo.Config{Timeout: cfg.Tiingo.Timeout}, keys, cb, client))
	}

	sinaClient := httpx.New(cfg.APITimeout)
	adapters = append(adapters, sina.New(sina.Config{Timeout: cfg.APITimeout}, keypool.NewKeyless(), newBreaker(cfg), sinaClient))

	eastmoneyClient := httpx.New(cfg.APITimeout)
	adapters = append(adapters, eastmoney.New(eastmoney.Config{Timeout: cfg.APITimeout}, keypool.NewKeyless(), newBreaker(cfg), eastmoneyClient))

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no provider adapters configured: set at least one of FINNHUB_API_KEY, ALPHAVANTAGE_API_KEY, TWELVEDATA_API_KEY, TIINGO_API_KEY (sina/eastmoney alone never cover US symbols)")
	}

	r := router.New(adapters, cfg.CustomPriority, cfg.MarketSources, cfg.LegacyOrder)

	d := dispatcher.New(adapters, r, dispatcher.Options{
		FailoverEnabled: cfg.FailoverEnabled,
		Retry: dispatcher.RetryConfig{
			Enabled:      cfg.Retry.Enabled,
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		},
		DefaultDeadline: cfg.DefaultDeadline,
	})

	return facade.New(d), nil
}

func newBreaker(cfg config.Config) *breaker.Breaker {
	return breaker.New(cfg.Breaker.FailureThreshold, cfg.Breaker.Timeout, cfg.Breaker.HalfOpenAttempts, cfg.Breaker.Enabled)
}
