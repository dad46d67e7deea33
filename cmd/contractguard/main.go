// Command contractguard serves the contract analysis agent API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/contractguard/contractguard/capability"
	"github.com/contractguard/contractguard/config"
	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/dispatch"
	"github.com/contractguard/contractguard/engine"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/model"
	modelanthropic "github.com/contractguard/contractguard/model/anthropic"
	modelopenai "github.com/contractguard/contractguard/model/openai"
	"github.com/contractguard/contractguard/retrieval"
	"github.com/contractguard/contractguard/router"
	"github.com/contractguard/contractguard/server"
	"github.com/contractguard/contractguard/session"
	"github.com/contractguard/contractguard/store"
	"github.com/contractguard/contractguard/tool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var version = "1.0.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contractguard",
		Short:         "Contract analysis agent",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func serve(cfg config.Config) error {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	if cfg.Tracing.Enabled {
		shutdown, err := setupTracing()
		if err != nil {
			return err
		}
		defer shutdown()
	}

	tasks, closeTasks, err := buildTaskStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeTasks()

	sessions := session.NewInMemoryStore(func(o *session.Options) {
		o.TTL = cfg.Session.TTL.D()
	})

	index := retrieval.NewInMemoryIndex()
	gen := buildGenerator(cfg.Model)

	dispatcher := dispatch.NewDispatcher(func(o *dispatch.Options) {
		o.Logger = logger.WithComponent("dispatch")
		o.SearchTimeout = cfg.Dispatch.SearchTimeout.D()
		o.GenerationTimeout = cfg.Dispatch.GenerationTimeout.D()
		o.MaxRetries = cfg.Dispatch.MaxRetries
		o.MaxConcurrent = cfg.Dispatch.MaxConcurrent
		o.MaxQueue = cfg.Dispatch.MaxQueue
	})
	if err := dispatcher.Register(dispatch.ClassSearch,
		tool.NewSearchContracts(index),
		tool.NewGetContractContext(index, index),
		tool.NewListDocuments(index)); err != nil {
		return err
	}
	if err := dispatcher.Register(dispatch.ClassGeneration,
		tool.NewAnalyzeClause(gen),
		tool.NewIdentifyRisks(gen),
		tool.NewExtractObligations(gen),
		tool.NewGenerateSummary(gen),
		tool.NewGenerateRiskReport(gen),
		tool.NewGenerateComparisonReport(gen)); err != nil {
		return err
	}

	registry := capability.Default()
	rt := router.New(gen, registry, func(o *router.Options) {
		o.Logger = logger.WithComponent("router")
	})

	eng, err := engine.New(engine.Deps{
		Tasks:      tasks,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Router:     rt,
		Registry:   registry,
		Generator:  gen,
	}, func(o *engine.Options) {
		o.Logger = logger.WithComponent("engine")
		o.TopK = cfg.Engine.TopK
		o.SynthesisTimeout = cfg.Engine.SynthesisTimeout.D()
	})
	if err != nil {
		return err
	}

	srv := server.New(eng, sessions, dispatcher, registry, func(o *server.Options) {
		o.Logger = logger.WithComponent("server")
		o.Version = version
	})

	reaperDone := startReaper(eng, cfg.Engine.TaskRetention.D(), logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.Server.Addr)
		if err := srv.Start(cfg.Server.Addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		close(reaperDone)
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}
	close(reaperDone)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := eng.Close(ctx); err != nil {
		logger.Error("engine shutdown timed out", "error", err)
	}
	return nil
}

func buildTaskStore(cfg config.StoreConfig) (core.TaskStore, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return store.NewInMemoryStore(), func() {}, nil
	}
}

func buildGenerator(cfg config.ModelConfig) core.Generator {
	switch cfg.Provider {
	case "anthropic":
		return modelanthropic.NewGenerator(func(o *modelanthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropic.Model(cfg.Name)
			}
			o.APIKey = cfg.APIKey
		})
	case "openai":
		return modelopenai.NewGenerator(func(o *modelopenai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
		})
	default:
		return model.NewMockGenerator("mock", "local")
	}
}

func startReaper(eng *engine.Engine, retention time.Duration, logger *logging.ContractGuardLogger) chan struct{} {
	done := make(chan struct{})
	if retention <= 0 {
		return done
	}
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				removed, err := eng.ReapExpired(context.Background(), retention)
				if err != nil {
					logger.Warn("task reaping failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("reaped expired tasks", "count", removed)
				}
			}
		}
	}()
	return done
}

func setupTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}
