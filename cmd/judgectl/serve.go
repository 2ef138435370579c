package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/evalapi"
	httpserver "github.com/dan-robinson-ai/judge-training-ground/internal/adapters/http"
	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/id"
	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/retry"
	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/tracing"
	"github.com/dan-robinson-ai/judge-training-ground/internal/application/training"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/shared/httpclient"
)

// serveCmd starts the training store and its HTTP surface
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the training ground server",
		Long: `Start the judge training server.

The server owns the training store: datasets, prompt versions, and
evaluation runs, persisted locally with debounced writes. The remote
evaluation service (JUDGE_EVAL_URL) performs generation, judging, and
prompt optimization.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	shutdownTracer, err := tracing.InitTracer("judge-training-ground")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	repo, cleanup, err := buildRepository(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	evalClient := evalapi.NewClient(
		cfg.Eval.URL,
		evalapi.WithHTTPClient(httpclient.New(httpclient.WithTimeout(cfg.EvalTimeout()))),
	)

	// The server is useful without the evaluation service (browsing and
	// editing datasets), so an unreachable service is only a warning.
	probe := func() error {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return evalClient.Health(probeCtx)
	}
	retryable := func(err error) bool {
		return errors.Is(err, domain.ErrEvalServiceUnavailable)
	}
	if err := retry.WithBackoff(ctx, retry.ProbeConfig(), retryable, probe); err != nil {
		log.Printf("evaluation service not reachable at %s: %v", cfg.Eval.URL, err)
	}

	store := training.New(repo, evalClient, id.New(), training.Options{
		DefaultModel:     cfg.Eval.Model,
		DebounceInterval: cfg.DebounceInterval(),
	})
	if err := store.Load(ctx); err != nil {
		return err
	}

	server := httpserver.NewServer(cfg, store, evalClient)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	// Flush any pending debounced save before the substrate closes.
	if err := store.Close(shutdownCtx); err != nil {
		log.Printf("store close: %v", err)
	}
	return nil
}
