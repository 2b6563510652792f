package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeServer struct {
	stop     chan struct{}
	startErr error
	drained  atomic.Bool
}

func (f *fakeServer) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	<-f.stop
	return nil
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	close(f.stop)
	// In-flight requests still finishing.
	time.Sleep(50 * time.Millisecond)
	f.drained.Store(true)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRunServerWaitsForShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &fakeServer{stop: make(chan struct{})}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, time.Second, quietLogger()) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after shutdown")
	}
	if !srv.drained.Load() {
		t.Error("runServer returned before shutdown finished")
	}
}

func TestRunServerStartError(t *testing.T) {
	want := errors.New("address in use")
	srv := &fakeServer{stop: make(chan struct{}), startErr: want}

	err := runServer(context.Background(), srv, time.Second, quietLogger())
	if !errors.Is(err, want) {
		t.Errorf("expected start error, got %v", err)
	}
}
