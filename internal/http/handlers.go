package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"jizhang/internal/aggregate"
	"jizhang/internal/core"
	"jizhang/internal/export"
	"jizhang/internal/log"
	"jizhang/internal/services"
	"jizhang/internal/sheets"

	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports whether templates are loaded and the workbook answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, _, err := s.svc.Budget(ctx); err != nil {
		checks["workbook"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["workbook"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	dash, err := s.svc.Dashboard(r.Context())
	data := pageData{
		Today:      s.now().Format(core.DateLayout),
		Categories: core.Categories(),
		Overview:   s.overview(r.Context(), dash, err),
	}
	// A failed cycle still renders the form with the error panel.
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	s.render(w, r, status, "index.html", data)
}

// handleOverview renders the dashboard partial.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	dash, err := s.svc.Dashboard(r.Context())
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	s.render(w, r, status, "overview", s.overview(r.Context(), dash, err))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	entry, err := ParseEntry(parser, s.now())
	if err != nil {
		UnprocessableEntityError("Invalid entry: " + err.Error()).Write(w)
		return
	}

	logger := log.FromContext(r.Context())
	dash, err := s.svc.AddEntry(r.Context(), entry)
	if errors.Is(err, services.ErrReloadFailed) {
		s.writeStale(w, r, err, NewHTMXResponse().
			TriggerEntryCreated(entry.Date.String()).
			TriggerFormReset())
		return
	}
	if err != nil {
		s.writeError(w, r, err, log.ComponentLedger, log.OpAppend)
		return
	}
	logger.InfoContext(r.Context(), "Entry recorded",
		log.NewFields().WithEntry(entry.Date.String(), entry.Category.String(), entry.Amount).ToSlice()...)

	body, err := s.renderString("overview", s.overview(r.Context(), dash, nil))
	if err != nil {
		logger.ErrorContext(r.Context(), "Overview render failed", log.FieldError, err)
		InternalServerError("Entry saved but the page could not be refreshed").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerEntryCreated(entry.Date.String()).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Saved %s %s", entry.Category, core.FormatAmount(entry.Amount))).
		TriggerBudgetAlert(dash.Views.Status, aggregate.Percent(dash.Views.Ratio)).
		BodyHTML(body).
		Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	v, err := ParseBudget(parser)
	if err != nil {
		UnprocessableEntityError("Invalid budget: " + err.Error()).Write(w)
		return
	}

	dash, err := s.svc.SetBudget(r.Context(), v)
	if errors.Is(err, services.ErrReloadFailed) {
		s.writeStale(w, r, err, NewHTMXResponse().TriggerBudgetUpdated(v))
		return
	}
	if err != nil {
		s.writeError(w, r, err, log.ComponentBudget, log.OpUpdate)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget updated", log.NewFields().WithBudget(v).ToSlice()...)

	body, err := s.renderString("overview", s.overview(r.Context(), dash, nil))
	if err != nil {
		InternalServerError("Budget saved but the page could not be refreshed").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerBudgetUpdated(v).
		TriggerSuccessNotification(fmt.Sprintf("Monthly budget set to %s", core.FormatAmount(decimal.NewFromInt(int64(v))))).
		TriggerBudgetAlert(dash.Views.Status, aggregate.Percent(dash.Views.Ratio)).
		BodyHTML(body).
		Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	dash, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.ComponentExport, log.OpExport)
		return
	}

	month := dash.Now.Format("2006-01")
	var buf bytes.Buffer
	if err := export.Write(&buf, export.Report{Entries: dash.Entries, Views: dash.Views, Month: month}); err != nil {
		s.writeError(w, r, err, log.ComponentExport, log.OpExport)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="jizhang-%s.xlsx"`, month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeStale answers a write that was saved but could not be reloaded. The
// save is reported as done so the user does not resubmit it, and the overview
// shows the error panel until the next refresh.
func (s *Server) writeStale(w http.ResponseWriter, r *http.Request, err error, resp *HTMXResponseBuilder) {
	body, rerr := s.renderString("overview", s.overview(r.Context(), nil, err))
	if rerr != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Overview render failed", log.FieldError, rerr)
		body = ""
	}
	resp.TriggerNotification(NotificationWarning, "Saved. The overview could not be refreshed; reload the page later.", 8000).
		BodyHTML(body).
		Write(w)
}

// statusFor maps a cycle error to its HTTP status.
func statusFor(err error) int {
	var werr *sheets.WriteError
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.As(err, &werr):
		return http.StatusBadGateway
	case errors.Is(err, sheets.ErrConnection):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the matching error fragment. Remote detail
// is shown verbatim (escaped) so the user can see why a write failed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, component, op string) {
	status := statusFor(err)
	var (
		resp      *HTMXResponseBuilder
		msg       string
		errorType = log.ErrorTypeInternal
	)
	switch status {
	case http.StatusUnprocessableEntity:
		msg, errorType = err.Error(), log.ErrorTypeValidation
		resp = UnprocessableEntityError(msg)
	case http.StatusBadGateway:
		msg, errorType = "Save failed: "+err.Error(), log.ErrorTypeWrite
		resp = BadGatewayError(msg)
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		msg, errorType = "Cannot reach the spreadsheet: "+err.Error(), log.ErrorTypeConnection
		resp = ErrorResponse(status, msg)
	default:
		msg = "Unexpected error"
		resp = InternalServerError(msg)
	}
	if status >= 500 {
		s.access.LogError(r.Context(), "Request failed", err, component, op, errorType)
	}
	resp.TriggerErrorNotification(msg).Write(w)
}
