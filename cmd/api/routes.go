package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(PeerAddr)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(s.RequireAPIAuth)

		r.Get("/loans", apiList(s, s.dashboard.Loans))
		r.Get("/receipts", apiList(s, s.dashboard.Receipts))
		r.Get("/penalties", apiList(s, s.dashboard.Penalties))
		r.Get("/bank-documents", apiList(s, s.dashboard.BankDocuments))
		r.Get("/members", apiList(s, s.dashboard.Members))
		r.Get("/revenue", s.APIRevenue)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.CSRF())

		r.Get("/login", s.GetLogin)
		r.With(RateLimit(s.limiter, s.clientIPs)).Post("/login", s.PostLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)

			r.Post("/logout", s.PostLogout)
			r.Get("/", s.Overview)

			r.Route("/loans", func(r chi.Router) {
				r.Get("/", listPage(s, "Loans", "loans", "loans.html", loanStatuses, s.dashboard.Loans))
				r.Get("/{loanId}", s.Loan)
			})

			r.Get("/receipts", listPage(s, "Receipts", "receipts", "receipts.html", receiptStatuses, s.dashboard.Receipts))
			r.Get("/penalties", listPage(s, "CD penalties", "penalties", "penalties.html", penaltyStatuses, s.dashboard.Penalties))

			r.Route("/bank-documents", func(r chi.Router) {
				r.Get("/", listPage(s, "Bank documents", "documents", "documents.html", documentStatuses, s.dashboard.BankDocuments))
				r.Post("/{documentId}/review", s.ReviewBankDocument)
			})

			r.Route("/members", func(r chi.Router) {
				r.Get("/", listPage(s, "Members", "members", "members.html", memberStatuses, s.dashboard.Members))
				r.Get("/{memberId}", s.Member)
			})

			r.Get("/revenue", s.Revenue)
			r.Get("/history", s.History)
			r.Get("/audit", s.Audit)
		})
	})

	return r
}
