package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/config"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/handler"
	appmw "github.com/yunusgulbuz/gizlimesaj-sub005/internal/middleware"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/ratelimit"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/service"
)

type Server struct {
	echo           *echo.Echo
	cfg            *config.Config
	logger         *slog.Logger
	paymentHandler *handler.PaymentHandler
	orderHandler   *handler.OrderHandler
	adminHandler   *handler.AdminHandler

	pageViewLimit echo.MiddlewareFunc
	checkoutLimit echo.MiddlewareFunc
	apiLimit      echo.MiddlewareFunc
}

func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	orderService service.OrderService,
	checkout service.CheckoutService,
	webhookService service.WebhookService,
	fulfillment service.FulfillmentService,
	reconciler service.Reconciler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(logger)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				logger.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	paymentHandler := handler.NewPaymentHandler(webhookService, orderService, cfg.BaseURL, logger)
	orderHandler := handler.NewOrderHandler(
		orderService, checkout, reconciler, fulfillment,
		cfg.BaseURL, cfg.Paytr.QueryTimeout, cfg.RenderTimeout, logger,
	)
	adminHandler := handler.NewAdminHandler(reconciler, orderHandler)

	// one store, keys are namespaced by limiter name
	store := ratelimit.NewMemoryStore()
	rl := cfg.RateLimit

	s := &Server{
		echo:           e,
		cfg:            cfg,
		logger:         logger,
		paymentHandler: paymentHandler,
		orderHandler:   orderHandler,
		adminHandler:   adminHandler,
		pageViewLimit: appmw.RateLimit("page_view",
			ratelimit.New(rl.Strategy, store, rl.PageViewMax, rl.PageViewWindow), logger),
		checkoutLimit: appmw.RateLimit("checkout",
			ratelimit.New(rl.Strategy, store, rl.CheckoutMax, rl.CheckoutWindow), logger),
		apiLimit: appmw.RateLimit("api",
			ratelimit.New(rl.Strategy, store, rl.APIMax, rl.APIWindow), logger),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- orders / pages --------
	api.POST("/orders", s.orderHandler.CreateOrder, s.checkoutLimit)
	api.GET("/orders/:orderID/status", s.orderHandler.OrderStatus, s.apiLimit)
	api.GET("/personal-pages/:shortID", s.orderHandler.PersonalPage, s.pageViewLimit)

	// -------- provider webhooks / callbacks --------
	payments := api.Group("/payments", s.apiLimit)
	payments.POST("/webhook", s.paymentHandler.Webhook)
	payments.POST("/paytr/callback", s.paymentHandler.PaytrCallback)
	payments.GET("/paytr/callback", s.paymentHandler.PaytrReturn)

	// -------- failure post-backs --------
	for _, path := range []string{"/api/payment/fail", "/payment/fail"} {
		s.echo.GET(path, s.paymentHandler.Fail)
		s.echo.POST(path, s.paymentHandler.Fail)
	}

	// -------- admin --------
	// limit first so rejected credentials still count against the caller
	admin := api.Group("/admin", s.apiLimit, appmw.AdminAuth(s.cfg.AdminJWTSecret))
	admin.POST("/reconcile", s.adminHandler.Reconcile)
	admin.GET("/orders/:orderID", s.adminHandler.GetOrder)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
