package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aura-voice/aura-relay/internal/dotenv"
	"github.com/aura-voice/aura-relay/pkg/gateway/config"
	gatewayserver "github.com/aura-voice/aura-relay/pkg/gateway/server"
)

type relayDeps struct {
	loadConfig   func() (config.Config, error)
	newServer    func(config.Config, *slog.Logger) *gatewayserver.Server
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultRelayDeps() relayDeps {
	return relayDeps{
		loadConfig: config.LoadFromEnv,
		newServer:  gatewayserver.New,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	// No ReadTimeout: it would cut long-lived websocket sessions short.
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func runRelay(ctx context.Context, logger *slog.Logger, deps relayDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.newServer == nil {
		return errors.New("missing newServer dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	relay := deps.newServer(cfg, logger)
	httpSrv := buildHTTPServer(cfg, relay.Handler())

	logger.Info("starting relay",
		"addr", cfg.Addr,
		"model", cfg.GeminiModel,
		"voice", cfg.TTSVoice,
	)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	relay.SetDraining()
	relay.WarnSessionsDraining()

	// Shutdown stops the listener and waits for plain HTTP requests.
	// Upgraded websocket connections are hijacked, so the session
	// tracker drains those separately below.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !relay.WaitSessions(waitCtx) {
		canceled := relay.CancelSessions()
		logger.Warn("grace period expired, sessions force-closed", "sessions", canceled)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("relay stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps relayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "aura-relay: %v\n", err)
		return 1
	}

	if err := runRelay(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "aura-relay: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultRelayDeps()))
}
