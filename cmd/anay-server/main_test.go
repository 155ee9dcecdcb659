package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anay-go/anay/pkg/gateway/config"
	gatewayserver "github.com/anay-go/anay/pkg/gateway/server"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Addr:                          "127.0.0.1:0",
		AuthMode:                      config.AuthModeDisabled,
		APIKeys:                       map[string]struct{}{},
		CORSAllowedOrigins:            map[string]struct{}{},
		MaxBodyBytes:                  1 << 20,
		MaxAudioBytes:                 1 << 20,
		MaxTextBytes:                  4096,
		WSMaxSessionDuration:          time.Minute,
		WSMaxSessionsPerPrincipal:     2,
		ReadHeaderTimeout:             time.Second,
		ReadTimeout:                   time.Second,
		HandlerTimeout:                time.Second,
		ShutdownGracePeriod:           time.Second,
		UpstreamConnectTimeout:        time.Second,
		UpstreamResponseHeaderTimeout: time.Second,
		Workspace:                     dir,
		ContextFile:                   filepath.Join(dir, "ctx.json"),
	}
}

func noSignals() (func(chan<- os.Signal, ...os.Signal), func(chan<- os.Signal)) {
	return func(chan<- os.Signal, ...os.Signal) {}, func(chan<- os.Signal) {}
}

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	notify, stop := noSignals()
	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, serverDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newGateway: func(cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
			t.Fatalf("newGateway should not be called when config load fails")
			return nil, nil
		},
		signalNotify: notify,
		signalStop:   stop,
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); got == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunServer_GatewayBuildError(t *testing.T) {
	notify, stop := noSignals()
	err := runServer(context.Background(), &bytes.Buffer{}, serverDeps{
		loadConfig: func() (config.Config, error) { return testConfig(t), nil },
		newGateway: func(config.Config, *slog.Logger) (*gatewayserver.Server, error) {
			return nil, errors.New("no provider")
		},
		signalNotify: notify,
		signalStop:   stop,
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRunServer_DrainsOnContextCancel(t *testing.T) {
	notify, stop := noSignals()
	ctx, cancel := context.WithCancel(context.Background())

	var built *gatewayserver.Server
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, &bytes.Buffer{}, serverDeps{
			loadConfig: func() (config.Config, error) { return testConfig(t), nil },
			newGateway: func(cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
				gw, err := gatewayserver.New(cfg, logger)
				built = gw
				return gw, err
			},
			signalNotify: notify,
			signalStop:   stop,
		})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer err=%v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
	if built == nil {
		t.Fatal("gateway was not built")
	}
}

func TestRunServer_StopsOnSignal(t *testing.T) {
	sigCh := make(chan chan<- os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- runServer(context.Background(), &bytes.Buffer{}, serverDeps{
			loadConfig: func() (config.Config, error) { return testConfig(t), nil },
			newGateway: gatewayserver.New,
			signalNotify: func(c chan<- os.Signal, _ ...os.Signal) {
				sigCh <- c
			},
			signalStop: func(chan<- os.Signal) {},
		})
	}()

	select {
	case c := <-sigCh:
		c <- os.Interrupt
	case <-time.After(5 * time.Second):
		t.Fatal("signal channel was not registered")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer err=%v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after signal")
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := loadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file err=%v", err)
	}

	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ANAY_DOTENV_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("ANAY_DOTENV_TEST_VALUE") })
	if err := loadDotEnv(path); err != nil {
		t.Fatalf("loadDotEnv err=%v", err)
	}
	if got := os.Getenv("ANAY_DOTENV_TEST_VALUE"); got != "from-file" {
		t.Fatalf("env=%q, want from-file", got)
	}
}
