package main

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/client"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/repository"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/service"
)

type app struct {
	cfg            *config.Config
	logger         *slog.Logger
	db             *gorm.DB
	orderService   service.OrderService
	checkout       service.CheckoutService
	webhookService service.WebhookService
	fulfillment    service.FulfillmentService
	reconciler     service.Reconciler
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	db, err := client.InitDBClient(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	paytrClient := client.NewPaytrClient(&cfg.Paytr)
	emailClient := client.NewEmailClient(&cfg.Email)

	orderRepo := repository.NewOrderRepository(db)
	pageRepo := repository.NewPersonalPageRepository(db)

	fulfillment := service.NewFulfillmentService(db, pageRepo, emailClient, cfg.BaseURL, logger)
	orderService := service.NewOrderService(db, orderRepo, fulfillment, logger)
	checkout := service.NewCheckoutService(orderService, paytrClient, logger)
	webhookService := service.NewWebhookService(&cfg.Paytr, orderService, logger)
	reconciler := service.NewReconciler(cfg.Reconcile, orderRepo, paytrClient, orderService, fulfillment, logger)

	return &app{
		cfg:            cfg,
		logger:         logger,
		db:             db,
		orderService:   orderService,
		checkout:       checkout,
		webhookService: webhookService,
		fulfillment:    fulfillment,
		reconciler:     reconciler,
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}
