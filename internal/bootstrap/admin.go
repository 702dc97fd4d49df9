package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/RSO-2024-25-skupina-03/authentication/internal/config"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/domain"
	"github.com/RSO-2024-25-skupina-03/authentication/internal/service"
)

// EnsureAdmin creates a default admin user in the default tenant for
// dev/e2e setups. Skipped when the bootstrap variables are unset.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, auth *service.AuthService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, auth, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, auth *service.AuthService, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" || cfg.DefaultTenant == "" {
		if logger != nil {
			logger.Debug("admin bootstrap skipped, not configured")
		}
		return nil
	}

	_, err := auth.Register(ctx, cfg.DefaultTenant, service.RegisterRequest{
		Name:     "Admin",
		Email:    email,
		Password: cfg.AdminPassword,
		Role:     string(domain.RoleAdmin),
		AdminKey: cfg.AdminKey,
	})
	if err != nil {
		// An existing admin is fine; anything server-side fails startup.
		if authErr, ok := err.(*service.AuthError); ok && authErr.Status < http.StatusInternalServerError {
			if logger != nil {
				logger.Debug("admin bootstrap skipped", zap.String("reason", authErr.Message))
			}
			return nil
		}
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", email),
			zap.String("tenant", cfg.DefaultTenant),
		)
	}
	return nil
}
