package handlers

import (
	"net/http"

	"payfesa/internal/config"
	"payfesa/internal/db"
	"payfesa/internal/middleware"
	"payfesa/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	txRunner      db.TxRunner
	cfg           config.Config
	users         UserStore
	groups        GroupStore
	members       MemberStore
	escrows       EscrowStore
	reserve       ReserveStore
	contributions ContributionStore
	transactions  TransactionStore
	admin         AdminStore
	audit         AuditStore
	groupSvc      GroupService
	contribSvc    ContributionService
	payoutSvc     PayoutService
	shortfallSvc  ShortfallService
	rankingSvc    RankingService
	ledger        LedgerService
	hub           *websocket.Hub
	log           *logrus.Logger
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, groups GroupStore, members MemberStore, escrows EscrowStore, reserve ReserveStore, contributions ContributionStore, transactions TransactionStore, admin AdminStore, audit AuditStore, groupSvc GroupService, contribSvc ContributionService, payoutSvc PayoutService, shortfallSvc ShortfallService, rankingSvc RankingService, ledger LedgerService, hub *websocket.Hub, log *logrus.Logger) *Handler {
	return &Handler{
		txRunner:      txRunner,
		cfg:           cfg,
		users:         users,
		groups:        groups,
		members:       members,
		escrows:       escrows,
		reserve:       reserve,
		contributions: contributions,
		transactions:  transactions,
		admin:         admin,
		audit:         audit,
		groupSvc:      groupSvc,
		contribSvc:    contribSvc,
		payoutSvc:     payoutSvc,
		shortfallSvc:  shortfallSvc,
		rankingSvc:    rankingSvc,
		ledger:        ledger,
		hub:           hub,
		log:           log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Route("/groups", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/", h.CreateGroup)
		r.Get("/", h.ListGroups)
		r.Get("/mine", h.MyGroups)
		r.Get("/{id}", h.GetGroup)
		r.Get("/{id}/members", h.ListMembers)
		r.Post("/{id}/join", h.JoinGroup)
		r.Post("/{id}/leave", h.LeaveGroup)
		r.Post("/{id}/contributions", h.Contribute)
		r.Get("/{id}/contributions", h.ListContributions)
		r.Get("/{id}/shortfall", h.GetShortfall)
		r.Post("/{id}/payout", h.RequestPayout)
		r.Get("/{id}/transactions", h.ListGroupTransactions)
	})

	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/contributions/{id}/complete", h.CompleteContribution)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet", h.GetWallet)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/transactions", h.ListWalletTransactions)
	router.Get("/ws/updates", h.WSUpdates)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Use(middleware.RequireAdmin(h.admin))
		r.Get("/reserve", h.GetReserve)
		r.Post("/reserve/topup", h.TopUpReserve)
		r.Post("/groups/{id}/suspend", h.SuspendGroup)
		r.Post("/groups/{id}/reinstate", h.ReinstateGroup)
		r.Post("/escrows/{id}/unlock", h.UnlockEscrow)
		r.Post("/sweep", h.RunSweep)
		r.Post("/rankings/recompute", h.RecomputeRankings)
		r.Get("/stats", h.GetStats)
		r.Get("/audit", h.ListAuditLogs)
	})

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
