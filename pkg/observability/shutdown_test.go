package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShutdownManagerDefaultsTimeout(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})

	sm := NewShutdownManager(logger, &http.Server{}, 0)
	assert.Equal(t, defaultShutdownTimeout, sm.timeout)

	sm = NewShutdownManager(logger, &http.Server{}, 10*time.Second)
	assert.Equal(t, 10*time.Second, sm.timeout)
}

func TestShutdownRunsFuncsInReverseOrder(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, time.Second)

	var order []string
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, sm.shutdown(context.Background()))
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestShutdownReturnsFirstErrorButRunsAll(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, time.Second)

	ran := 0
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		ran++
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		ran++
		return errors.New("redis close failed")
	})

	err := sm.shutdown(context.Background())
	assert.EqualError(t, err, "redis close failed")
	assert.Equal(t, 2, ran)
}

func TestWaitForShutdownOnSignal(t *testing.T) {
	logger := NewLogger(ErrorLevel, &bytes.Buffer{})
	sm := NewShutdownManager(logger, nil, time.Second)

	cleaned := make(chan struct{})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		close(cleaned)
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown() }()

	// Give WaitForShutdown a moment to install its signal handler.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete after signal")
	}

	select {
	case <-cleaned:
	default:
		t.Fatal("shutdown func did not run")
	}
}
