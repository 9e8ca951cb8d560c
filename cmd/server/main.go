package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/furisto/console/api"
	"github.com/furisto/console/api/auth"
	"github.com/furisto/console/event"
	"github.com/furisto/console/executor"
	"github.com/furisto/console/history"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "localhost:8080", "the address to listen on")
	capacityVar := flag.Int("capacity", history.DefaultCapacity, "history capacity in bytes")
	tokenVar := flag.String("token", "", "access token (generated when empty)")
	verboseVar := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if *verboseVar {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	token := *tokenVar
	if token == "" {
		generated, _, err := auth.GenerateToken()
		if err != nil {
			return err
		}
		token = generated
	}

	registry := prometheus.NewRegistry()
	bus := event.NewBus(registry)
	defer bus.Close()
	log := history.New(*capacityVar, registry)
	env := executor.New(log, bus)

	observeLifecycle(bus)

	handler := api.NewHandler(api.HandlerOptions{
		Log:       log,
		Executor:  env,
		Bus:       bus,
		TokenHash: auth.HashToken(token),
		Token:     token,
		Registry:  registry,
	})
	server := api.NewServer(handler, *addrVar)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("listening", "addr", *addrVar)
	fmt.Printf("http://%s/?auth=%s\n", *addrVar, token)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		env.Interrupt("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func observeLifecycle(bus *event.Bus) {
	event.Subscribe(bus, func(ctx context.Context, e event.SnippetSubmitted) {
		slog.Info("snippet submitted", "task_id", e.TaskID, "bytes", e.Bytes)
	})
	event.Subscribe(bus, func(ctx context.Context, e event.ExecutionFinished) {
		slog.Info("execution finished",
			"task_id", e.TaskID,
			"failed", e.Failed,
			"duration", e.Duration,
		)
	})
	event.Subscribe(bus, func(ctx context.Context, e event.HistoryCleared) {
		slog.Info("history cleared", "version", e.Version)
	})
}
