package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nishchay-veer/chat-lingo/internal/app"
	"github.com/nishchay-veer/chat-lingo/internal/httpapi"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for `subject` and exit")
	flag.Parse()

	cfg := app.LoadConfigFromEnv()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	if *issueToken != "" {
		token, expiresAt, err := httpapi.IssueToken(cfg.JWTSecret, *issueToken, cfg.JWTExpiry)
		if err != nil {
			logger.Fatalf("issue token: %v", err)
		}
		fmt.Println(token)
		logger.Printf("token for %s expires %s", *issueToken, expiresAt.Format(time.RFC3339))
		return
	}

	// Initialize Sentry for error monitoring
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2, // 20% of requests for performance monitoring
			Environment:      getEnvironment(),
			Debug:            cfg.Debug(),
		})
		if err != nil {
			logger.Printf("sentry init failed: %v", err)
		} else {
			logger.Printf("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		if cfg.SentryDSN != "" {
			sentry.CaptureException(err)
			sentry.Flush(2 * time.Second)
		}
		logger.Fatalf("init app: %v", err)
	}

	if cfg.JWTSecret == "" {
		logger.Printf("JWT_SECRET not set, /api routes are open")
	}

	requests := httpapi.NewRequestRegistry()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Router(requests),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()

	// Stop accepting turns, then let the ones in flight finish.
	requests.StartDraining()
	logger.Printf("draining %d in-flight requests", requests.ActiveCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		requests.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Printf("drain timed out with %d requests active", requests.ActiveCount())
	}

	_ = srv.Shutdown(shutdownCtx)
	_ = a.Close()
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
