package http

import (
	"bytes"
	"net/http"

	"campusledger/internal/analytics"
	"campusledger/internal/core"
	"campusledger/internal/log"
	"campusledger/internal/report"
)

// loadForExport resolves the user, dataset, and selection for a download.
// A download is always produced when the data loads: a degenerate
// selection exports the empty state (header-only CSV, placeholder
// report sections) rather than failing.
func (s *Server) loadForExport(w http.ResponseWriter, r *http.Request) (string, []core.Transaction, core.Selection, bool) {
	ctx := r.Context()

	user := s.currentUser(ctx)
	txs, _, err := s.data.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Data load failed",
			log.FieldUser, user, log.FieldOperation, log.OpExport, log.FieldError, err)
		http.Error(w, "error loading data from database", http.StatusInternalServerError)
		return user, nil, core.Selection{}, false
	}

	sel := s.selectionFor(ctx, user, txs)
	filtered, err := analytics.Filter(txs, sel)
	if err != nil {
		filtered = nil
	}
	return user, filtered, sel, true
}

// handleExportCSV streams the filtered rows as a CSV attachment. An
// empty selection still downloads a header-only file.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	user, filtered, _, ok := s.loadForExport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, filtered); err != nil {
		s.logger.ErrorContext(r.Context(), "CSV export failed",
			log.FieldUser, user, log.FieldError, err)
		http.Error(w, "error generating CSV export", http.StatusInternalServerError)
		return
	}

	s.logger.InfoContext(r.Context(), "CSV exported",
		log.FieldUser, user, log.FieldRows, len(filtered))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.reports.CSVFileName(user)+`"`)
	_, _ = w.Write(buf.Bytes())
}

// handleExportReport builds the self-contained dashboard report and
// streams it as an HTML attachment.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	user, filtered, sel, ok := s.loadForExport(w, r)
	if !ok {
		return
	}

	doc, err := s.reports.BuildHTML(user, filtered, sel, analysisCategory(r, sel))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Report build failed",
			log.FieldUser, user, log.FieldOperation, log.OpRender, log.FieldError, err)
		http.Error(w, "error generating dashboard report", http.StatusInternalServerError)
		return
	}

	s.logger.InfoContext(r.Context(), "Dashboard report exported",
		log.FieldUser, user, log.FieldRows, len(filtered))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.reports.HTMLFileName(user)+`"`)
	_, _ = w.Write(doc)
}
