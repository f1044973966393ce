// Package server implements the daemon's Unix-socket listener lifecycle and
// per-connection dispatch loop (§4.7), the localcached analogue of the
// teacher's server.go accept loop.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/adred-codev/localcached/internal/config"
	"github.com/adred-codev/localcached/internal/eviction"
	"github.com/adred-codev/localcached/internal/memsensor"
	"github.com/adred-codev/localcached/internal/metrics"
	"github.com/adred-codev/localcached/internal/pubsub"
	"github.com/adred-codev/localcached/internal/store"
)

// Server owns every piece of shared daemon state and the listener.
type Server struct {
	cfg     *config.Config
	runtime *config.RuntimeConfig
	logger  zerolog.Logger

	kv       *store.KvStore
	bus      *pubsub.Bus
	evictor  *eviction.Controller
	metrics  *metrics.Metrics
	sensor   memsensor.Sensor
	promReg  *prometheus.Registry
	opSem    chan struct{}

	listener net.Listener

	wg sync.WaitGroup
}

// New constructs a Server with freshly built shared state.
func New(cfg *config.Config, logger zerolog.Logger) *Server {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, nowMs())
	rc := config.NewRuntimeConfig(cfg.PressureHotBp())
	kv := store.New()
	bus := pubsub.New(cfg.PubsubCapacity, m)
	sensor := memsensor.HostSensor{}
	evictor := eviction.New(kv, sensor, m, rc,
		durationFromMs(cfg.PressurePollMs), logger.With().Str("component", "eviction").Logger(), nowMs)

	return &Server{
		cfg:     cfg,
		runtime: rc,
		logger:  logger,
		kv:      kv,
		bus:     bus,
		evictor: evictor,
		metrics: m,
		sensor:  sensor,
		promReg: reg,
		opSem:   make(chan struct{}, cfg.MaxConcurrentOps),
	}
}

// Run binds the socket, writes the PID file, starts the eviction loop, and
// serves connections until ctx is canceled (§6 "Startup lifecycle").
func (s *Server) Run(ctx context.Context) error {
	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return fmt.Errorf("server: removing stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.cfg.SocketPath, err)
	}
	s.listener = ln

	if err := writePidFile(s.cfg.PidPath); err != nil {
		ln.Close()
		return fmt.Errorf("server: writing pid file: %w", err)
	}

	s.logger.Info().Str("socket", s.cfg.SocketPath).Str("pid_file", s.cfg.PidPath).Msg("localcached listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.evictor.Run(ctx)
	}()

	if s.cfg.MetricsAddr != "" {
		go s.serveMetricsHTTP(ctx, s.promReg, s.cfg.MetricsAddr)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				s.logger.Warn().Err(err).Msg("server: accept error")
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer recoverConnPanic(s.logger)
			s.handleConn(ctx, conn)
		}()
	}
}

func recoverConnPanic(logger zerolog.Logger) {
	if r := recover(); r != nil {
		logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).
			Msg("server: recovered panic in connection handler")
	}
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

func writePidFile(path string) error {
	pid := strconv.Itoa(os.Getpid())
	return os.WriteFile(path, []byte(pid), 0o644)
}
