package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/bootstrap"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/config"
	httptransport "github.com/RSO-2024-25-skupina-03/authentication/internal/http"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/http/handler"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/middleware"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/server"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/service"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/telemetry"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/tenant"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/token"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newRegistry,
			newStoreResolver,
			newSigner,
			newRateLimiter,
			service.NewAuthService,
			handler.NewAuthHandler,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newRegistry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *tenant.Registry {
	registry := tenant.NewRegistry(cfg, logger)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			registry.Close()
			return nil
		},
	})

	return registry
}

func newStoreResolver(registry *tenant.Registry) service.StoreResolver {
	return registry
}

func newSigner(cfg config.Config, logger *zap.Logger) *token.Signer {
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, issued tokens are unusable in production")
	}
	return token.NewSigner([]byte(cfg.JWTSecret), cfg.TokenTTL)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
