package admin

import (
	"context"
	"errors"

	"github.com/smallbiznis/grievance-portal/internal/admin/authz"
	"github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/smallbiznis/grievance-portal/internal/admin/repository"
	"github.com/smallbiznis/grievance-portal/internal/admin/service"
	"github.com/smallbiznis/grievance-portal/internal/admin/session"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("admin",
	fx.Provide(repository.Provide),
	fx.Provide(session.ProvideTokens),
	fx.Provide(session.NewCookies),
	fx.Provide(authz.NewEnforcer),
	fx.Provide(service.New),
	fx.Invoke(registerBootstrap),
)

func registerBootstrap(lc fx.Lifecycle, cfg config.Config, svc domain.Service, log *zap.Logger) {
	if cfg.AdminBootstrapEmail == "" || cfg.AdminBootstrapPassword == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.Bootstrap(ctx, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword)
			if errors.Is(err, domain.ErrAdminExists) {
				return nil
			}
			if err != nil {
				log.Error("admin bootstrap failed", zap.Error(err))
			}
			return nil
		},
	})
}
