package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bfast/internal/config"
	"bfast/internal/database"
	"bfast/internal/handler"
	"bfast/internal/model"
	"bfast/internal/mw"
	"bfast/internal/service"
	"bfast/internal/worker"
)

func main() {
	cfg := config.New()

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(context.Background(), db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	// Services
	authSvc := service.NewAuthService(db)
	orderSvc := service.NewOrderService(db)
	clientSvc := service.NewClientService(db)
	batchSvc := service.NewBatchService(orderSvc)

	defaultCourier := service.NewShiprocketClient(cfg.ShiprocketBaseURL, cfg.ShiprocketEmail, cfg.ShiprocketPassword)
	engine := service.NewReconcileEngine(orderSvc, clientSvc, defaultCourier,
		func(c *model.Client) service.CommerceClient {
			return service.NewShopifyClient(c.ShopifyStore, c.ShopifyAPIKey, c.ShopifyAPIPassword, cfg.ShopifyAPIVersion)
		},
		func(c *model.Client) service.CourierClient {
			return service.NewShiprocketClient(cfg.ShiprocketBaseURL, c.ShiprocketEmail, c.ShiprocketPassword)
		})

	// Worker
	syncWorker := worker.NewSyncWorker(engine, cfg.SyncInterval)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/auth/register", handler.RegisterHandler(authSvc, cfg.JWTSecret))
	r.Post("/api/auth/login", handler.LoginHandler(authSvc, cfg.JWTSecret))
	r.Get("/api/track/{awb}", handler.TrackHandler(engine))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc))
		r.Get("/api/orders/pending", handler.ListPendingOrdersHandler(orderSvc))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRoles(model.RoleAdmin))
			r.Post("/api/sync", handler.SyncNowHandler(engine))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRoles(model.RoleAdmin, model.RoleExecutive))
			r.Post("/api/orders/assign-awb", handler.AssignAWBHandler(batchSvc))
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRoles(model.RoleAdmin, model.RoleExecutive, model.RoleClientAdmin))
			r.Post("/api/orders/bulk-update", handler.BulkUpdateHandler(batchSvc))
		})
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go syncWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
