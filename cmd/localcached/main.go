// Command localcached is the cache daemon entrypoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/localcached/internal/config"
	"github.com/adred-codev/localcached/internal/server"
)

func main() {
	debug := flag.Bool("debug", false, "enable debug logging (overrides LOCALCACHED_LOG_LEVEL)")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Str("service", "localcached").Logger()

	// automaxprocs rounds GOMAXPROCS down to the container's integer CPU
	// allocation; correct for the Go scheduler even though it undercounts
	// fractional limits.
	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("automaxprocs applied")

	cfg, err := config.Load(&logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}
	if cfg.LogFormat == "pretty" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	cfg.LogConfig(logger)

	srv := server.New(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}
