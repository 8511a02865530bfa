// Command server runs the relay as a plain HTTP process for local
// development and long-lived deployments. Unlike the Lambda entry point it
// can run the periodic eviction sweep and register the Telegram webhook at
// startup.
package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"studio-relay/internal/app"
	"studio-relay/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to build service", "err", err)
		os.Exit(1)
	}

	if cfg.PublicBaseURL != "" {
		url := strings.TrimRight(cfg.PublicBaseURL, "/") + "/api/telegram"
		if err := a.Telegram.SetWebhook(ctx, url, cfg.WebhookSecret); err != nil {
			slog.Error("webhook registration failed", "url", url, "err", err)
			os.Exit(1)
		}
		slog.Info("webhook registered", "url", url)
	}

	go sweepLoop(ctx, a.State, cfg.SweepInterval)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: http.HandlerFunc(adapt(a)),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// sweepLoop evicts idle sessions and elapsed rate windows on a fixed timer.
// Advisory housekeeping: lookups already ignore stale entries.
func sweepLoop(ctx context.Context, state app.State, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := state.Sweep(ctx, now)
			if err != nil {
				slog.Error("sweep failed", "err", err)
				continue
			}
			if removed > 0 {
				slog.Info("sweep complete", "removed", removed)
			}
		}
	}
}

// adapt bridges net/http requests onto the Lambda proxy handler so both
// entry points run the identical code path.
func adapt(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		event := events.APIGatewayProxyRequest{
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Headers:    headers,
			Body:       string(body),
		}
		if host, _, splitErr := net.SplitHostPort(r.RemoteAddr); splitErr == nil {
			event.RequestContext.Identity.SourceIP = host
		}

		resp, err := a.Handler.Handle(r.Context(), event)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}
