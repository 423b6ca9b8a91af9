package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	httphandler "github.com/ogurasousui/personnel-records/internal/adapters/http/handler"
	"github.com/ogurasousui/personnel-records/internal/adapters/repository/postgres"
	"github.com/ogurasousui/personnel-records/internal/core/employee"
	"github.com/ogurasousui/personnel-records/internal/platform/config"
	pg "github.com/ogurasousui/personnel-records/internal/platform/db/postgres"
	"github.com/ogurasousui/personnel-records/internal/platform/logger"
	"github.com/ogurasousui/personnel-records/internal/platform/server"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("failed to load config")
	}

	lg := logger.New(cfg.Log)

	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to initialize database pool")
	}
	defer dbPool.Close()

	txManager := postgres.NewTransactionManager(pg.NewTransactionManager(dbPool))
	employeeRepo := postgres.NewEmployeeRepository(dbPool)
	employeeSvc := employee.NewService(employeeRepo, nil, txManager)

	app := httphandler.NewApp(cfg.Server, httphandler.NewEmployeeHandler(employeeSvc, lg), dbPool, lg)
	srv := server.New(server.Options{
		HTTPAddr:        cfg.Server.HTTPAddr,
		HealthAddr:      cfg.Server.HealthAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, app, dbPool, lg)

	if err := srv.Run(ctx); err != nil {
		lg.Error().Err(err).Msg("server stopped with error")
		stop()
		dbPool.Close()
		os.Exit(1)
	}

	lg.Info().Msg("server stopped")
}
