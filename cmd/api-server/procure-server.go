package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"procure/config"
	"procure/db"
	"procure/db/migrations"
	"procure/internal/contract"
	"procure/internal/gateway"
	"procure/internal/handlers"
	"procure/internal/lifecycle"
	"procure/internal/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbConn.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbConn.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := migrations.Run(dbConn.DB); err != nil {
		return err
	}
	log.Info("migrations applied")

	store := db.NewStorage(dbConn)
	locks := lifecycle.NewLocks()
	dispatcher := gateway.NewDispatcher(log, cfg.Events.BufferSize)
	defer dispatcher.Close()

	contracts := contract.NewManager(store, dispatcher, locks, log)
	payments := payment.NewLedger(store, dispatcher, locks, log)
	h := handlers.NewHandler(store, contracts, payments, locks, log)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router(h),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func router(h *handlers.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)

		r.Route("/nits", func(r chi.Router) {
			r.Post("/", h.CreateNITHandler)
			r.Get("/", h.ListNITsHandler)
			r.Get("/{nitId}", h.GetNITHandler)
			r.Post("/{nitId}/publish", h.PublishNITHandler)
			r.Delete("/{nitId}", h.DeleteNITHandler)
			r.Post("/{nitId}/work-items", h.CreateWorkItemHandler)
			r.Get("/{nitId}/work-items", h.ListWorkItemsHandler)
		})

		r.Route("/work-items/{workItemId}", func(r chi.Router) {
			r.Get("/", h.GetWorkItemHandler)
			r.Get("/snapshot", h.GetWorkItemSnapshotHandler)

			r.Post("/bids", h.SubmitBidHandler)
			r.Get("/bids", h.ListBidsHandler)
			r.Get("/comparative-statement", h.ComparativeStatementHandler)

			r.Post("/open-technical-bids", h.OpenTechnicalBidsHandler)
			r.Post("/close-technical-evaluation", h.CloseTechnicalEvaluationHandler)
			r.Post("/open-financial-evaluation", h.OpenFinancialEvaluationHandler)
			r.Post("/retender", h.RetenderHandler)

			r.Post("/award", h.AwardHandler)
			r.Get("/award", h.GetAwardHandler)
			r.Post("/approve-work", h.ApproveWorkHandler)

			r.Post("/bills", h.CertifyBillHandler)
			r.Get("/payment", h.GetPaymentHandler)
		})

		r.Route("/bids/{bidId}", func(r chi.Router) {
			r.Put("/evaluation", h.SaveEvaluationHandler)
			r.Get("/evaluation", h.GetEvaluationHandler)
			r.Put("/amount", h.SetBidAmountHandler)
		})

		r.Post("/work-orders/{workOrderId}/cancel", h.CancelWorkOrderHandler)
	})
	return r
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
