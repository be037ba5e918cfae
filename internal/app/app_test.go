package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storman/internal/config"
	"storman/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "storman.db")
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	cfg.Discovery.Enabled = false
	cfg.Metrics.Enabled = false
	return &cfg
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func TestInitializeToleratesMissingEngine(t *testing.T) {
	a := New(testConfig(t), testLogger(t))

	require.NoError(t, a.Initialize())
	require.NotNil(t, a.store)
	require.NotNil(t, a.sched)
	require.NotNil(t, a.server)

	require.NoError(t, a.Shutdown())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	a := New(testConfig(t), testLogger(t))
	require.NoError(t, a.Initialize())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.True(t, a.sched.IsRunning())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after context cancel")
	}
	require.False(t, a.sched.IsRunning())
}
