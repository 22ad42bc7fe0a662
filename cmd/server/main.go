package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payfesa/internal/config"
	"payfesa/internal/db"
	"payfesa/internal/handlers"
	"payfesa/internal/notify"
	"payfesa/internal/scheduler"
	"payfesa/internal/services"
	"payfesa/internal/store"
	"payfesa/internal/websocket"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	users := store.NewUserStore(database)
	groups := store.NewGroupStore(database)
	members := store.NewMemberStore(database)
	escrows := store.NewEscrowStore(database)
	reserve := store.NewReserveStore(database)
	contributions := store.NewContributionStore(database)
	transactions := store.NewTransactionStore(database)
	admin := store.NewAdminStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()
	notifier := notify.NewLogNotifier(log)

	ledger := services.NewLedgerService(txRunner, users, escrows, reserve, audit)
	ranking := services.NewRankingService(txRunner, groups, members, audit, notifier, hub, log)
	coverage := services.NewCoverageService(txRunner, ledger, escrows, transactions, members, audit, notifier, log)
	shortfall := services.NewShortfallService(groups, contributions, transactions, escrows, coverage, log)
	groupSvc := services.NewGroupService(txRunner, groups, members, escrows, audit, ranking, log)
	contribSvc := services.NewContributionService(txRunner, groups, members, users, escrows, contributions, transactions, audit, hub, log)
	payoutSvc := services.NewPayoutService(txRunner, groups, members, users, escrows, transactions, audit, shortfall, coverage, ranking, notifier, hub, log)

	sweeper := scheduler.NewSweepScheduler(shortfall, cfg.SweepCron, log)
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("failed to start sweep scheduler")
	}

	handler := handlers.New(txRunner, cfg, users, groups, members, escrows, reserve, contributions, transactions, admin, audit, groupSvc, contribSvc, payoutSvc, shortfall, ranking, ledger, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("payfesa API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	sweeper.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("shutdown error")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log
}
