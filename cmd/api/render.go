package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"

	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"societyadmin"
	"societyadmin/societyapi"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "layout.html"

type pageData struct {
	Title     string
	Active    string
	Session   societyadmin.Session
	SignedIn  bool
	CSRFField template.HTML
	Error     string
	Notice    string
	Data      any
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

// parsePages parses every page together with the shared layout.
func parsePages() (map[string]*template.Template, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("unable to list templates: %w", err)
	}

	pages := map[string]*template.Template{}
	for _, name := range names {
		base := path.Base(name)
		if base == layoutTemplate {
			continue
		}

		tpl, err := template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(templateFS, "templates/"+layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("unable to parse template \"%s\": %w", base, err)
		}
		pages[base] = tpl
	}

	return pages, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	tpl, ok := s.pages[page]
	if !ok {
		s.logger.Error("unknown template", zap.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if session, ok := sessionFrom(r.Context()); ok {
		data.Session = session
		data.SignedIn = true
	}
	data.CSRFField = csrf.TemplateField(r)

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		s.logger.Error("unable to render template", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// describeError turns an error into the status code and banner shown to the admin.
// Internal detail stays in the log.
func describeError(err error) (int, string) {
	var apiErr *societyapi.APIError

	switch {
	case errors.Is(err, societyapi.ErrNotFound), errors.Is(err, societyadmin.ErrNotFound):
		return http.StatusNotFound, "The requested record was not found."
	case errors.Is(err, societyapi.ErrUnauthorized):
		return http.StatusUnauthorized, "Your session has expired, please sign in again."
	case errors.Is(err, societyapi.ErrMaintenance):
		return http.StatusServiceUnavailable, "The society backend is under maintenance, try again shortly."
	case errors.Is(err, societyapi.ErrTooManyRetries):
		return http.StatusServiceUnavailable, "The society backend is busy, try again shortly."
	case errors.Is(err, societyadmin.ErrInvalidReviewStatus):
		return http.StatusBadRequest, "A document can only be approved or rejected."
	case errors.Is(err, societyadmin.ErrHistoryDisabled):
		return http.StatusOK, "History is disabled because no database is configured."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "The society backend took too long to respond."
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiErr.Message
	case errors.Is(err, societyapi.ErrUnableToDecodeResponse):
		return http.StatusBadGateway, "The society backend sent a response that could not be read."
	default:
		return http.StatusInternalServerError, "Something went wrong while loading this page."
	}
}

// fail renders the page with an error banner. A rejected backend token ends the session.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, page string, data pageData, err error) {
	if errors.Is(err, societyapi.ErrUnauthorized) {
		s.endSession(w, r)
		http.Redirect(w, r, "/login?expired=1", http.StatusSeeOther)
		return
	}

	status, message := describeError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Info("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}

	data.Error = message
	s.render(w, r, status, page, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func (s *Server) failJSON(w http.ResponseWriter, r *http.Request, err error) {
	status, message := describeError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSONError(w, status, message)
}
