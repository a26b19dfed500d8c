package handlers

import (
	"net/http"
	"strings"

	"virtus/internal/config"
	"virtus/internal/db"
	"virtus/internal/logging"
	"virtus/internal/middleware"
	"virtus/internal/models"
	"virtus/internal/ratelimit"
	"virtus/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	txRunner     db.TxRunner
	cfg          config.Config
	log          logrus.FieldLogger
	users        UserStore
	accounts     AccountStore
	institutions InstitutionStore
	transactions TransactionStore
	admin        AdminStore
	audit        AuditStore
	transfers    TransferService
	catalog      CatalogService
	redemptions  RedemptionService
	payments     PaymentService
	codes        CodeService
	limiter      ratelimit.Limiter
	hub          *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, log logrus.FieldLogger, stores Stores, svc Services, limiter ratelimit.Limiter, hub *websocket.Hub) *Handler {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &Handler{
		txRunner:     txRunner,
		cfg:          cfg,
		log:          log,
		users:        stores.Users,
		accounts:     stores.Accounts,
		institutions: stores.Institutions,
		transactions: stores.Transactions,
		admin:        stores.Admin,
		audit:        stores.Audit,
		transfers:    svc.Transfers,
		catalog:      svc.Catalog,
		redemptions:  svc.Redemptions,
		payments:     svc.Payments,
		codes:        svc.Codes,
		limiter:      limiter,
		hub:          hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(logging.RequestLogger(h.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)
	self := middleware.RequireSelf("id")
	student := middleware.RequireKind(models.KindStudent)
	professor := middleware.RequireKind(models.KindProfessor)
	company := middleware.RequireKind(models.KindCompany)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})

	router.Route("/api", func(r chi.Router) {
		r.Get("/instituicoes", h.Institutions)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			r.Route("/alunos", func(r chi.Router) {
				r.With(student).Post("/pagar-link", h.PayLink)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(student, self)
					r.Put("/", h.UpdateProfile)
					r.Get("/saldo", h.Balance)
					r.Get("/extrato", h.Statement)
					r.Post("/resgatar-vantagem", h.Redeem)
					r.Get("/resgates", h.ListRedemptions)
					r.Put("/resgates/{rid}/validar", h.ValidateOwnRedemption)
					r.Post("/link-pagamento", h.CreatePaymentLink)
					r.Get("/link-pagamento", h.GetPaymentLink)
					r.Delete("/link-pagamento", h.DeletePaymentLink)
				})
			})

			r.Route("/professores/{id}", func(r chi.Router) {
				r.Use(professor, self)
				r.Get("/saldo", h.Balance)
				r.Get("/extrato", h.Statement)
				r.Get("/alunos", h.Students)
				r.Post("/enviar-moedas", h.SendCoins)
				r.Post("/aplicar-codigo", h.ApplyCode)
			})

			r.Route("/empresas/{id}", func(r chi.Router) {
				r.Use(company, self)
				r.Get("/saldo", h.Balance)
				r.Post("/vantagens", h.CreateAdvantage)
				r.Patch("/vantagens/{vid}", h.UpdateAdvantage)
				r.Delete("/vantagens/{vid}", h.DeleteAdvantage)
			})

			r.Route("/vantagens", func(r chi.Router) {
				r.Get("/", h.ListAdvantages)
				r.Get("/ativas", h.ListActiveAdvantages)
				r.Get("/empresa/{id}", h.ListCompanyAdvantages)
				r.Get("/{id}", h.GetAdvantage)
			})

			r.Get("/resgates/{id}", h.GetRedemption)
			r.Post("/resgates/{id}/validar", h.ValidateRedemption)
		})
	})

	router.Get("/ws/saldo", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleViewAudit)).Get("/audit", h.ListAuditLogs)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleViewAudit)).Get("/transactions", h.AdminListTransactions)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleViewAudit)).Get("/reconcile", h.Reconcile)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleViewAudit)).Get("/reconcile/{userId}", h.ReconcileUser)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleViewAudit)).Get("/accounts", h.AdminListAccounts)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleGrantAllowance)).Post("/allowance", h.Allowance)
		r.With(middleware.RequireAdmin(h.admin, middleware.RoleManageAdmins)).Post("/admins", h.CreateAdmin)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
