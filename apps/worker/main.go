package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/grievance-portal/internal/awsclient"
	"github.com/smallbiznis/grievance-portal/internal/businessmetrics"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint"
	"github.com/smallbiznis/grievance-portal/internal/complaint/dispatch"
	"github.com/smallbiznis/grievance-portal/internal/complaint/recovery"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"github.com/smallbiznis/grievance-portal/internal/observability"
	"github.com/smallbiznis/grievance-portal/internal/payment"
	"github.com/smallbiznis/grievance-portal/internal/ratelimit"
	"github.com/smallbiznis/grievance-portal/internal/responder"
	"github.com/smallbiznis/grievance-portal/internal/secrets"
	"github.com/smallbiznis/grievance-portal/pkg/db"
	"go.uber.org/fx"
)

// The worker consumes the generation queue and sweeps complaints left in
// received by a crashed process.
func main() {
	app := fx.New(
		config.Module,
		fx.Decorate(secrets.Overlay),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		awsclient.Module,

		responder.Module,
		payment.Module,
		complaint.Module,
		ratelimit.Module,
		businessmetrics.Module,

		dispatch.ConsumerModule,
		recovery.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
