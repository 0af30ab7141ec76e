package main

import (
	"time"

	"go.uber.org/fx"

	"github.com/avoskres/dbjanitor/internal/configfx"
	"github.com/avoskres/dbjanitor/internal/loggerfx"
	"github.com/avoskres/dbjanitor/internal/maintenancefx"
	"github.com/avoskres/dbjanitor/internal/metricsfx"
	"github.com/avoskres/dbjanitor/internal/schedulerfx"
	"github.com/avoskres/dbjanitor/internal/sqlfx"
)

func main() {
	logger := loggerfx.Logger()

	app := fx.New(
		fx.StartTimeout(15*time.Second),
		fx.StopTimeout(15*time.Second),

		fx.Logger(logger),

		loggerfx.Module,
		configfx.Module,
		sqlfx.Module,
		schedulerfx.Module,
		metricsfx.Module,
		maintenancefx.Module,
	)

	app.Run()
}
