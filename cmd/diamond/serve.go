package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/diamond-portal/internal/domain"
	"github.com/totegamma/diamond-portal/internal/infra/database"
	"github.com/totegamma/diamond-portal/internal/infra/gateway"
	"github.com/totegamma/diamond-portal/internal/infra/repository"
	"github.com/totegamma/diamond-portal/internal/present/rest"
	authmw "github.com/totegamma/diamond-portal/internal/present/rest/middleware"
	"github.com/totegamma/diamond-portal/internal/service"
	"github.com/totegamma/diamond-portal/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry store HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", "", "listen address (default :3001)")
	serveCmd.Flags().String("store-type", "", "registry backend: file, memory, postgres, sqlite, s3")
	serveCmd.Flags().String("store-path", "", "registry document path for the file backend")
	serveCmd.Flags().String("redis-addr", "", "redis address for realtime registry events")

	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("store-type", serveCmd.Flags().Lookup("store-type"))
	_ = viper.BindPFlag("store-path", serveCmd.Flags().Lookup("store-path"))
	_ = viper.BindPFlag("redis-addr", serveCmd.Flags().Lookup("redis-addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, cfg.Server.TraceEndpoint, "diamond-registry")
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	repo, err := repository.NewRegistryRepositoryFromConfig(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer repo.Close()

	var publisher usecase.EventPublisher
	var events rest.EventStream
	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		signalService := service.NewSignalService(rdb, cfg.Redis.Channel)
		publisher = signalService
		events = signalService
	}

	registry := usecase.NewRegistryUsecase(repo, publisher, cfg.Store.UniqueIDs)
	handler := rest.NewHandler(
		domain.Config{
			RequireOwnerScope: cfg.Server.RequireOwnerScope,
			AuthEnabled:       cfg.Auth.UserinfoURL != "",
		},
		registry,
		events,
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	if cfg.Server.EnableTrace {
		e.Use(otelecho.Middleware("diamond-registry"))
	}
	if cfg.Auth.UserinfoURL != "" {
		auth := authmw.NewAuthMiddleware(service.NewAuthService(gateway.NewIdentityGateway(cfg.Auth.UserinfoURL)))
		e.Use(auth.IdentifyIdentity)
	}
	handler.RegisterRoutes(e)

	go func() {
		slog.Info(
			"registry listening",
			slog.String("addr", cfg.Server.Listen),
			slog.String("store", cfg.Store.Type),
			slog.String("module", "main"),
		)
		if err := e.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", slog.String("error", err.Error()), slog.String("module", "main"))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("shutting down", slog.String("module", "main"))
	return e.Shutdown(shutdownCtx)
}
