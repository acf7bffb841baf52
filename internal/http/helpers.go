package http

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"campusledger/internal/core"
	"campusledger/internal/log"
)

// currentUser resolves the viewing identity from the database session,
// falling back to the configured default for local runs.
func (s *Server) currentUser(ctx context.Context) string {
	user, err := s.data.CurrentUser(ctx)
	if err != nil || user == "" {
		s.logger.WarnContext(ctx, "Falling back to default user", log.FieldError, err)
		return s.defaultUser
	}
	return user
}

// defaultSelection is the everything-visible selection over a dataset:
// every fiscal year, every category, all departments.
func defaultSelection(txs []core.Transaction) core.Selection {
	return core.Selection{
		Years:      core.Years(txs),
		Categories: core.Categories(txs),
		Department: core.AllDepartments,
	}
}

// selectionFor returns the user's stored selection, or the default when
// nothing has been saved yet.
func (s *Server) selectionFor(ctx context.Context, user string, txs []core.Transaction) core.Selection {
	sel, found, err := s.sessions.Selection(ctx, user)
	if err != nil {
		s.logger.WarnContext(ctx, "Selection lookup failed",
			log.FieldUser, user, log.FieldError, err)
		return defaultSelection(txs)
	}
	if !found {
		return defaultSelection(txs)
	}
	return sel
}

// parseSelectionForm reads a selection from posted form values. Years and
// categories are repeated fields; absent department means all.
func parseSelectionForm(r *http.Request) (core.Selection, error) {
	if err := r.ParseForm(); err != nil {
		return core.Selection{}, err
	}

	var sel core.Selection
	for _, v := range r.Form["years"] {
		if y, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			sel.Years = append(sel.Years, y)
		}
	}
	for _, v := range r.Form["categories"] {
		if c := strings.TrimSpace(v); c != "" {
			sel.Categories = append(sel.Categories, c)
		}
	}
	sel.Department = strings.TrimSpace(r.Form.Get("department"))
	return sel.Normalize(), nil
}

// The deep dive opens on software subscriptions when the selection
// includes it; the seeded demo narrative centers on that category.
const preferredAnalysisCategory = "software subscriptions"

// analysisCategory picks the deep-dive category: the explicit query
// parameter when it is part of the selection, then the preferred
// default, then the first selected category.
func analysisCategory(r *http.Request, sel core.Selection) string {
	if c := strings.TrimSpace(r.URL.Query().Get("category")); c != "" && sel.HasCategory(c) {
		return c
	}
	if sel.HasCategory(preferredAnalysisCategory) {
		return preferredAnalysisCategory
	}
	if len(sel.Categories) > 0 {
		return sel.Categories[0]
	}
	return ""
}

func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err, "template", name)
		writeErrorPartial(w, "Rendering failed")
	}
}

// writeErrorPartial emits the user-visible error banner used when a data
// load fails. The page stays up; only the section reports the problem.
func writeErrorPartial(w http.ResponseWriter, msg string) {
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(msg) + `</div>`))
}

// writePrompt emits the corrective prompt for degenerate selections.
func writePrompt(w http.ResponseWriter, msg string) {
	_, _ = w.Write([]byte(`<div class="prompt">` + template.HTMLEscapeString(msg) + `</div>`))
}

// promptFor maps a selection validation error to its corrective prompt.
func promptFor(err error) string {
	switch err {
	case core.ErrNoYears:
		return "Select at least one fiscal year to display data"
	case core.ErrNoCategories:
		return "Select at least one expenditure category to display data"
	default:
		return "Adjust the filters to display data"
	}
}
