package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/grievance-portal/internal/admin"
	"github.com/smallbiznis/grievance-portal/internal/awsclient"
	"github.com/smallbiznis/grievance-portal/internal/businessmetrics"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	"github.com/smallbiznis/grievance-portal/internal/complaint"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"github.com/smallbiznis/grievance-portal/internal/observability"
	"github.com/smallbiznis/grievance-portal/internal/payment"
	"github.com/smallbiznis/grievance-portal/internal/providers"
	"github.com/smallbiznis/grievance-portal/internal/ratelimit"
	"github.com/smallbiznis/grievance-portal/internal/responder"
	"github.com/smallbiznis/grievance-portal/internal/secrets"
	"github.com/smallbiznis/grievance-portal/internal/server"
	"github.com/smallbiznis/grievance-portal/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		fx.Decorate(secrets.Overlay),
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		awsclient.Module,

		// Public and admin HTTP API
		responder.Module,
		payment.Module,
		complaint.Module,
		admin.Module,
		providers.Module,
		ratelimit.Module,
		businessmetrics.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
