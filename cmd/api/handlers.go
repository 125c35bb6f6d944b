package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"societyadmin"
	"societyadmin/societyapi"
)

const historyWindow = 90 * 24 * time.Hour

type loginForm struct {
	Username string
	Next     string
}

// safeNext only follows local redirects.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/login") {
		return "/"
	}
	return next
}

func (s *Server) GetLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := s.currentSession(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := pageData{Title: "Sign in", Data: loginForm{Next: r.URL.Query().Get("next")}}
	if r.URL.Query().Get("expired") != "" {
		data.Notice = "Your session has expired, please sign in again."
	}
	s.render(w, r, http.StatusOK, "login.html", data)
}

func (s *Server) PostLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Next:     r.PostFormValue("next"),
	}
	password := r.PostFormValue("password")
	data := pageData{Title: "Sign in", Data: form}

	if form.Username == "" || password == "" {
		data.Error = "Username and password are required."
		s.render(w, r, http.StatusBadRequest, "login.html", data)
		return
	}

	result, err := s.client.Login(r.Context(), form.Username, password)
	if err != nil {
		if errors.Is(err, societyapi.ErrUnauthorized) {
			data.Error = "Invalid username or password."
			s.render(w, r, http.StatusUnauthorized, "login.html", data)
			return
		}
		s.fail(w, r, "login.html", data, err)
		return
	}

	session, err := s.sessions.Create(r.Context(), result.User.Username, result.User.Role, result.Token)
	if err != nil {
		s.fail(w, r, "login.html", data, err)
		return
	}
	s.setSessionCookie(w, session)

	s.dashboard.Record(r.Context(), societyadmin.AuditEvent{Actor: session.Username, Action: "login"})
	s.logger.Info("admin signed in", zap.String("username", session.Username))

	http.Redirect(w, r, safeNext(form.Next), http.StatusSeeOther)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r.Context())
	if !ok {
		s.clearSessionCookie(w)
		return
	}

	s.dashboard.Invalidate(r.Context(), session.Token)
	if err := s.sessions.Delete(r.Context(), session.ID); err != nil {
		s.logger.Warn("unable to delete session", zap.Error(err))
	}
	s.clearSessionCookie(w)
}

func (s *Server) PostLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := sessionFrom(r.Context()); ok {
		s.dashboard.Record(r.Context(), societyadmin.AuditEvent{Actor: session.Username, Action: "logout"})
	}
	s.endSession(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) token(r *http.Request) string {
	session, _ := sessionFrom(r.Context())
	return session.Token
}

func (s *Server) Overview(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Overview", Active: "overview"}

	overview, err := s.dashboard.Overview(r.Context(), s.token(r))
	if err != nil {
		s.fail(w, r, "overview.html", data, err)
		return
	}

	data.Data = overview
	s.render(w, r, http.StatusOK, "overview.html", data)
}

type listView[T any] struct {
	Path     string
	Page     societyadmin.Page[T]
	Statuses []string
}

// listPage serves one of the filterable tables.
func listPage[T any](s *Server, title, active, page string, statuses []string, load func(context.Context, string, societyadmin.Query) (societyadmin.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := societyadmin.ParseQuery(r.URL.Query(), s.config.PageSize)
		data := pageData{Title: title, Active: active, Data: listView[T]{Path: r.URL.Path, Page: societyadmin.Page[T]{Query: q}, Statuses: statuses}}

		result, err := load(r.Context(), s.token(r), q)
		if err != nil {
			s.fail(w, r, page, data, err)
			return
		}

		data.Data = listView[T]{Path: r.URL.Path, Page: result, Statuses: statuses}
		s.render(w, r, http.StatusOK, page, data)
	}
}

// apiList serves a table as Page JSON.
func apiList[T any](s *Server, load func(context.Context, string, societyadmin.Query) (societyadmin.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := societyadmin.ParseQuery(r.URL.Query(), s.config.PageSize)

		result, err := load(r.Context(), s.token(r), q)
		if err != nil {
			s.failJSON(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) Loan(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Loan", Active: "loans"}

	loan, err := s.dashboard.Loan(r.Context(), s.token(r), chi.URLParam(r, "loanId"))
	if err != nil {
		s.fail(w, r, "loan.html", data, err)
		return
	}

	data.Title = "Loan " + loan.Number
	data.Data = loan
	s.render(w, r, http.StatusOK, "loan.html", data)
}

func (s *Server) Member(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Member", Active: "members"}

	member, err := s.dashboard.Member(r.Context(), s.token(r), chi.URLParam(r, "memberId"))
	if err != nil {
		s.fail(w, r, "member.html", data, err)
		return
	}

	data.Title = member.Member.Name
	data.Data = member
	s.render(w, r, http.StatusOK, "member.html", data)
}

func (s *Server) ReviewBankDocument(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFrom(r.Context())
	documentId := chi.URLParam(r, "documentId")

	returnQuery, _ := url.ParseQuery(r.PostFormValue("return_query"))
	q := societyadmin.ParseQuery(returnQuery, s.config.PageSize)

	_, err := s.dashboard.ReviewBankDocument(r.Context(), session, documentId, r.PostFormValue("status"), r.PostFormValue("note"))
	if err != nil {
		data := pageData{Title: "Bank documents", Active: "documents"}

		documents, loadErr := s.dashboard.BankDocuments(r.Context(), session.Token, q)
		if loadErr == nil {
			data.Data = listView[societyadmin.DocumentRow]{Path: "/bank-documents", Page: documents, Statuses: documentStatuses}
		} else {
			data.Data = listView[societyadmin.DocumentRow]{Path: "/bank-documents", Page: societyadmin.Page[societyadmin.DocumentRow]{Query: q}}
		}
		s.fail(w, r, "documents.html", data, err)
		return
	}

	s.logger.Info("bank document reviewed",
		zap.String("document_id", documentId),
		zap.String("status", societyadmin.NormalizeStatus(r.PostFormValue("status"))),
		zap.String("username", session.Username),
	)

	http.Redirect(w, r, "/bank-documents?"+q.Values().Encode(), http.StatusSeeOther)
}

func (s *Server) Revenue(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Revenue", Active: "revenue"}

	revenue, err := s.dashboard.Revenue(r.Context(), s.token(r))
	if err != nil {
		s.fail(w, r, "revenue.html", data, err)
		return
	}

	if revenue.Derived {
		data.Notice = "The monthly breakdown is derived from receipts."
	}
	data.Data = revenue
	s.render(w, r, http.StatusOK, "revenue.html", data)
}

func (s *Server) APIRevenue(w http.ResponseWriter, r *http.Request) {
	revenue, err := s.dashboard.Revenue(r.Context(), s.token(r))
	if err != nil {
		s.failJSON(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, revenue)
}

func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Revenue history", Active: "history"}

	rows, err := societyadmin.RevenueHistory(r.Context(), s.snapshots, s.dashboard.Formatter(), time.Now().Add(-historyWindow))
	if err != nil {
		s.fail(w, r, "history.html", data, err)
		return
	}

	last, err := societyadmin.LastCaptured(r.Context(), s.snapshots)
	if err != nil {
		s.fail(w, r, "history.html", data, err)
		return
	}
	if last == "" {
		data.Notice = "No revenue snapshot has been captured yet."
	} else {
		data.Notice = "Last captured " + last + "."
	}

	data.Data = rows
	s.render(w, r, http.StatusOK, "history.html", data)
}

func (s *Server) Audit(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Audit log", Active: "audit"}

	rows, err := societyadmin.RecentAudit(r.Context(), s.audit)
	if err != nil {
		s.fail(w, r, "audit.html", data, err)
		return
	}

	data.Data = rows
	s.render(w, r, http.StatusOK, "audit.html", data)
}

var (
	loanStatuses     = []string{"pending", "approved", "active", "overdue", "paid", "rejected"}
	receiptStatuses  = []string{"pending", "verified", "rejected"}
	penaltyStatuses  = []string{"pending", "paid", "waived"}
	documentStatuses = []string{"pending", "approved", "rejected"}
	memberStatuses   = []string{"active", "inactive", "suspended"}
)
