package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payequity/internal/alert"
	"github.com/smallbiznis/payequity/internal/authorization"
	"github.com/smallbiznis/payequity/internal/clock"
	"github.com/smallbiznis/payequity/internal/company"
	"github.com/smallbiznis/payequity/internal/config"
	"github.com/smallbiznis/payequity/internal/equitysplit"
	"github.com/smallbiznis/payequity/internal/grant"
	"github.com/smallbiznis/payequity/internal/invoice"
	"github.com/smallbiznis/payequity/internal/migration"
	"github.com/smallbiznis/payequity/internal/observability"
	"github.com/smallbiznis/payequity/internal/providers"
	"github.com/smallbiznis/payequity/internal/ratelimit"
	"github.com/smallbiznis/payequity/internal/server"
	"github.com/smallbiznis/payequity/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		providers.Module,
		alert.Module,

		// Functional Domains
		company.Module,
		grant.Module,
		equitysplit.Module,
		invoice.Module,
		authorization.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
