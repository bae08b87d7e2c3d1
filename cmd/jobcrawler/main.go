package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exit codes
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status. An interrupted
// crawl still wrote its partial results, but the caller should know it was
// cut short.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		log.Warn().Msg("interrupted; partial results were written")
		return ExitInterrupted
	default:
		log.Error().Err(err).Msg("run failed")
		return ExitError
	}
}

// setupLogging applies the configured level. Verbose forces debug.
func setupLogging(level string, verbose bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		if level != "" {
			log.Warn().Str("level", level).Msg("unknown log level; using info")
		}
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
