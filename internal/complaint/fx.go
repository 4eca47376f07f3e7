package complaint

import (
	"github.com/smallbiznis/grievance-portal/internal/cache"
	"github.com/smallbiznis/grievance-portal/internal/complaint/dispatch"
	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/repository"
	"github.com/smallbiznis/grievance-portal/internal/complaint/service"
	"go.uber.org/fx"
)

var Module = fx.Module("complaint.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.NewStatsCache),
	fx.Provide(
		fx.Annotate(service.NewResolver, fx.As(new(domain.Resolver))),
	),
	fx.Provide(service.New),
	dispatch.Module,
)
