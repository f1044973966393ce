package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/adred-codev/localcached/internal/config"
	"github.com/adred-codev/localcached/internal/server"
	"github.com/adred-codev/localcached/internal/wire"
	"github.com/adred-codev/localcached/pkg/client"
)

func startTestServer(t *testing.T) (socketPath string, shutdown func()) {
	t.Helper()
	dir := t.TempDir()
	socketPath = filepath.Join(dir, "localcached.sock")

	cfg := &config.Config{
		SocketPath:       socketPath,
		PidPath:          filepath.Join(dir, "localcached.pid"),
		MaxFrameBytes:    1 << 20,
		PressureHot:      0.85,
		PressureCool:     0.80,
		PubsubCapacity:   16,
		PressurePollMs:   50,
		MaxConcurrentOps: 64,
		MetricsAddr:      "",
		LogLevel:         "error",
		LogFormat:        "json",
	}

	logger := zerolog.Nop()
	srv := server.New(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "server never created its socket")

	return socketPath, func() {
		cancel()
		<-done
	}
}

func TestSetGetDelRoundTrip(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	require.NoError(t, cl.Set(wire.FormatJSON, false, "svcA:users:1", []byte(`{"name":"a"}`), 0))

	resp, ok, err := cl.Get("svcA:users:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"name":"a"}`), resp.Value)

	require.NoError(t, cl.Del("svcA:users:1"))

	_, ok, err = cl.Get("svcA:users:1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetMissing(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	_, ok, err := cl.Get("svcA:users:missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInvalidKeyFormatRejected(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	for _, key := range []string{"not-three-parts", "svc:table:", ":table:pk", "svc::pk"} {
		err = cl.Set(wire.FormatJSON, false, key, []byte("v"), 0)
		var se *client.ServerError
		require.ErrorAs(t, err, &se, "SET %q", key)
		require.Equal(t, wire.StatusErrInvalidKeyFormat, se.Status)

		_, _, err = cl.Get(key)
		require.ErrorAs(t, err, &se, "GET %q", key)
		require.Equal(t, wire.StatusErrInvalidKeyFormat, se.Status)

		err = cl.Del(key)
		require.ErrorAs(t, err, &se, "DEL %q", key)
		require.Equal(t, wire.StatusErrInvalidKeyFormat, se.Status)
	}

	stats, err := cl.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(12), stats.InvalidKeyTotal)
	require.Equal(t, uint64(0), stats.KeysCount)
}

func TestPing(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	require.NoError(t, cl.Ping())
}

func TestKeysPrefixListing(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	require.NoError(t, cl.Set(wire.FormatJSON, false, "svcA:users:1", []byte("v"), 0))
	require.NoError(t, cl.Set(wire.FormatJSON, false, "svcA:users:2", []byte("v"), 0))
	require.NoError(t, cl.Set(wire.FormatJSON, false, "svcB:carts:1", []byte("v"), 0))

	keys, err := cl.Keys("svcA:users:")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"svcA:users:1", "svcA:users:2"}, keys)
}

func TestStatsReflectsActivity(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	require.NoError(t, cl.Set(wire.FormatJSON, false, "svcA:users:1", []byte("v"), 0))
	_, _, err = cl.Get("svcA:users:1")
	require.NoError(t, err)
	_, _, err = cl.Get("svcA:users:missing")
	require.NoError(t, err)

	stats, err := cl.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.KeysCount)
	require.GreaterOrEqual(t, stats.HitsTotal, uint64(1))
	require.GreaterOrEqual(t, stats.MissesTotal, uint64(1))
}

func TestSetSuppressPublishDoesNotNotifySubscriber(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	subConn, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer subConn.Close()
	sub, err := subConn.Subscribe("t:svcA:users")
	require.NoError(t, err)

	writer, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer writer.Close()

	require.NoError(t, writer.Set(wire.FormatJSON, true, "svcA:users:1", []byte("v"), 0))
	require.NoError(t, writer.Set(wire.FormatJSON, false, "svcA:users:2", []byte("v"), 0))

	ev, lagged, err := sub.Next()
	require.NoError(t, err)
	require.False(t, lagged)
	require.Equal(t, "svcA:users:2", ev.Key)
	require.Equal(t, wire.EventTableChanged, ev.EventType)
}

func TestSubscribeReceivesPushEventAndUnsubscribe(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	subConn, err := client.Connect(socketPath)
	require.NoError(t, err)
	sub, err := subConn.Subscribe("t:svcA:users")
	require.NoError(t, err)

	writer, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.Set(wire.FormatJSON, false, "svcA:users:1", []byte("v"), 0))

	ev, lagged, err := sub.Next()
	require.NoError(t, err)
	require.False(t, lagged)
	require.Equal(t, "svcA:users:1", ev.Key)
	require.Equal(t, wire.EventTableChanged, ev.EventType)
	require.Equal(t, "t:svcA:users", ev.Topic)

	require.NoError(t, writer.Del("svcA:users:1"))

	ev, lagged, err = sub.Next()
	require.NoError(t, err)
	require.False(t, lagged)
	require.Equal(t, "svcA:users:1", ev.Key)
	require.Equal(t, wire.EventInvalidate, ev.EventType)

	require.NoError(t, sub.Unsubscribe())
}

func TestSubscribeBadTopicKeepsCommandMode(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	_, err = cl.Subscribe("svcA:users")
	var se *client.ServerError
	require.ErrorAs(t, err, &se)
	require.Equal(t, wire.StatusErrBadPayload, se.Status)

	// The rejected subscribe must not have promoted or closed the
	// connection; command-mode requests still work.
	require.NoError(t, cl.Ping())
	require.NoError(t, cl.Set(wire.FormatJSON, false, "svcA:users:1", []byte("v"), 0))
}

func TestSetMemoryLimitRejectsAboveCeiling(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	result, err := cl.SetMemoryLimit(90)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, float64(85), result.MaxPercent)
}

func TestSetMemoryLimitAcceptsWithinCeiling(t *testing.T) {
	socketPath, shutdown := startTestServer(t)
	defer shutdown()

	cl, err := client.Connect(socketPath)
	require.NoError(t, err)
	defer cl.Close()

	result, err := cl.SetMemoryLimit(70)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, float64(70), result.NewPercent)
}
