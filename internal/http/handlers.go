package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"campusledger/internal/analytics"
	"campusledger/internal/core"
	"campusledger/internal/log"
)

// barRow is the shared shape for the CSS bar chart partials.
type barRow struct {
	Label  string
	Amount string
	Width  int
}

// loadFiltered runs the common partial pipeline: resolve the user, load
// the row-filtered dataset, apply the stored selection. A false return
// means the response has already been written.
func (s *Server) loadFiltered(w http.ResponseWriter, r *http.Request) (string, []core.Transaction, core.Selection, bool) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	user := s.currentUser(ctx)
	txs, _, err := s.data.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Data load failed",
			log.FieldUser, user, log.FieldOperation, log.OpLoad, log.FieldError, err)
		writeErrorPartial(w, "Error loading data from database")
		return user, nil, core.Selection{}, false
	}

	sel := s.selectionFor(ctx, user, txs)
	if err := sel.Validate(); err != nil {
		writePrompt(w, promptFor(err))
		return user, nil, sel, false
	}

	filtered, err := analytics.Filter(txs, sel)
	if err != nil {
		writePrompt(w, promptFor(err))
		return user, nil, sel, false
	}
	return user, filtered, sel, true
}

// handleDashboard renders the full page shell; the sections load
// themselves through the partial endpoints.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	user := s.currentUser(ctx)

	var loadErr string
	txs, summary, err := s.data.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Data load failed",
			log.FieldUser, user, log.FieldOperation, log.OpLoad, log.FieldError, err)
		loadErr = "Error loading data from database"
	}

	ents, err := s.data.Entitlements(ctx, user)
	if err != nil {
		s.logger.WarnContext(ctx, "Entitlement lookup failed",
			log.FieldUser, user, log.FieldError, err)
	}

	sel := s.selectionFor(ctx, user, txs)

	type option struct {
		Value    string
		Selected bool
	}
	type summaryRow struct {
		Department string
		Period     string
		Category   string
		Total      string
		Count      string
	}
	data := struct {
		User         string
		LoadError    string
		Entitlements []core.Entitlement
		Years        []option
		Categories   []option
		Departments  []option
		Summary      []summaryRow
	}{User: user, LoadError: loadErr, Entitlements: ents}

	for _, y := range core.Years(txs) {
		data.Years = append(data.Years, option{Value: strconv.Itoa(y), Selected: sel.HasYear(y)})
	}
	for _, c := range core.Categories(txs) {
		data.Categories = append(data.Categories, option{Value: c, Selected: sel.HasCategory(c)})
	}
	data.Departments = append(data.Departments, option{
		Value:    core.AllDepartments,
		Selected: sel.Department == core.AllDepartments,
	})
	for _, d := range core.Departments(txs) {
		data.Departments = append(data.Departments, option{Value: d, Selected: sel.Department == d})
	}

	// Most recent pre-aggregated periods, for the sidebar.
	for i, row := range summary {
		if i >= 10 {
			break
		}
		data.Summary = append(data.Summary, summaryRow{
			Department: row.DepartmentName,
			Period:     fmt.Sprintf("%d-%02d", row.FiscalYear, row.FiscalMonth),
			Category:   row.Category,
			Total:      core.FormatCurrency(row.TotalAmount),
			Count:      core.FormatCount(int(row.Count)),
		})
	}

	if s.templates == nil {
		s.logger.ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.logger.ErrorContext(ctx, "Dashboard template execution failed", log.FieldError, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleMetrics renders the headline metric grid.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	_, filtered, _, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	overview := analytics.Summarize(filtered)
	data := struct {
		Total          string
		AverageMonthly string
		Transactions   string
		Categories     int
	}{
		Total:          core.FormatCurrency(overview.Total),
		AverageMonthly: core.FormatCurrency(overview.AverageMonthly),
		Transactions:   core.FormatCount(overview.TransactionCount),
		Categories:     overview.CategoryCount,
	}
	s.renderPartial(w, r, "metrics.html", data)
}

// handleTrend renders the monthly spending trend chart.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	_, filtered, sel, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	points := analytics.Trend(filtered, sel.Categories)
	data := struct {
		Rows []barRow
	}{Rows: trendRows(points)}
	s.renderPartial(w, r, "trend.html", data)
}

// handleCategories renders the category breakdown chart.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	_, filtered, sel, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	totals := analytics.CategoryBreakdown(filtered, sel.Years)
	sum := decimal.Zero
	for _, c := range totals {
		sum = sum.Add(c.Amount)
	}

	var rows []barRow
	for _, c := range totals {
		rows = append(rows, barRow{
			Label:  c.Category,
			Amount: core.FormatCurrency(c.Amount),
			Width:  barWidth(c.Amount, sum),
		})
	}
	s.renderPartial(w, r, "categories.html", struct{ Rows []barRow }{rows})
}

// handleDepartments renders the cross-department comparison. With a
// single visible department the section is omitted: 204, no body.
func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	_, filtered, _, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	if len(core.Departments(filtered)) <= 1 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	totals := analytics.DepartmentTotals(filtered)
	max := decimal.Zero
	for _, t := range totals {
		if t.Amount.GreaterThan(max) {
			max = t.Amount
		}
	}

	type group struct {
		Department string
		Rows       []barRow
	}
	var groups []group
	for _, t := range totals {
		if len(groups) == 0 || groups[len(groups)-1].Department != t.Department {
			groups = append(groups, group{Department: t.Department})
		}
		g := &groups[len(groups)-1]
		g.Rows = append(g.Rows, barRow{
			Label:  fmt.Sprintf("FY %d", t.FiscalYear),
			Amount: core.FormatCurrency(t.Amount),
			Width:  barWidth(t.Amount, max),
		})
	}
	s.renderPartial(w, r, "departments.html", struct{ Groups []group }{groups})
}

// handleInsights renders the category deep dive: trend, seasonality, and
// the derived insight lines.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	_, filtered, sel, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	category := analysisCategory(r, sel)
	categoryData := analytics.ByCategory(filtered, category)
	ins := analytics.Insights(categoryData, sel)

	type yearlyGroup struct {
		Department string
		Rows       []barRow
	}
	data := struct {
		Category    string
		HasData     bool
		Alerts      []string
		Yearly      []barRow
		Groups      []yearlyGroup
		Seasonality []barRow
		Lines       []insightLine
	}{Category: category, HasData: ins.HasData, Alerts: spendingAlerts(filtered)}

	if ins.HasData {
		// Single department: one yearly series. "All": one series per
		// visible department.
		if sel.Department != core.AllDepartments {
			yearly := analytics.YearlyTotals(categoryData)
			maxYear := decimal.Zero
			for _, y := range yearly {
				if y.Amount.GreaterThan(maxYear) {
					maxYear = y.Amount
				}
			}
			for _, y := range yearly {
				data.Yearly = append(data.Yearly, barRow{
					Label:  fmt.Sprintf("FY %d", y.FiscalYear),
					Amount: core.FormatCurrency(y.Amount),
					Width:  barWidth(y.Amount, maxYear),
				})
			}
		} else {
			totals := analytics.DepartmentTotals(categoryData)
			max := decimal.Zero
			for _, t := range totals {
				if t.Amount.GreaterThan(max) {
					max = t.Amount
				}
			}
			for _, t := range totals {
				if len(data.Groups) == 0 || data.Groups[len(data.Groups)-1].Department != t.Department {
					data.Groups = append(data.Groups, yearlyGroup{Department: t.Department})
				}
				g := &data.Groups[len(data.Groups)-1]
				g.Rows = append(g.Rows, barRow{
					Label:  fmt.Sprintf("FY %d", t.FiscalYear),
					Amount: core.FormatCurrency(t.Amount),
					Width:  barWidth(t.Amount, max),
				})
			}
		}

		pattern := analytics.MonthlyPattern(categoryData)
		maxMonth := decimal.Zero
		for _, m := range pattern {
			if m.Average.GreaterThan(maxMonth) {
				maxMonth = m.Average
			}
		}
		for _, m := range pattern {
			data.Seasonality = append(data.Seasonality, barRow{
				Label:  m.Name(),
				Amount: core.FormatCurrency(m.Average),
				Width:  barWidth(m.Average, maxMonth),
			})
		}

		data.Lines = insightSummary(ins)
	}

	s.renderPartial(w, r, "insights.html", data)
}

// Spending spikes below this percent increase stay out of the alert
// banner; above it the growth is worth a closer look.
const spikeThresholdPercent = 30

// spendingAlerts renders the top spending spikes across the visible rows
// as advisory banner lines.
func spendingAlerts(filtered []core.Transaction) []string {
	spikes := analytics.SpendingSpikes(filtered, spikeThresholdPercent)
	if len(spikes) > 3 {
		spikes = spikes[:3]
	}
	alerts := make([]string, 0, len(spikes))
	for _, sp := range spikes {
		alerts = append(alerts, fmt.Sprintf(
			"%s %s spending is up %.1f%% in FY %d over the prior-year average. Consider shared services to contain costs.",
			sp.Department, sp.Category, sp.Percent.InexactFloat64(), sp.FiscalYear))
	}
	return alerts
}

type insightLine struct {
	Label string
	Value string
}

func insightSummary(ins analytics.Insight) []insightLine {
	lines := []insightLine{
		{Label: "Total Spending", Value: core.FormatCurrency(ins.Total)},
		{Label: "Average Monthly", Value: core.FormatCurrency(ins.AverageMonthly)},
		{Label: "Transactions", Value: core.FormatCount(ins.TransactionCount)},
	}

	if ins.Growth != nil {
		switch ins.Growth.Status {
		case analytics.GrowthKnown:
			lines = append(lines, insightLine{
				Label: fmt.Sprintf("Growth %d to %d", ins.Growth.FromYear, ins.Growth.ToYear),
				Value: fmt.Sprintf("%+.1f%%", ins.Growth.Percent.InexactFloat64()),
			})
		case analytics.GrowthUndefined:
			lines = append(lines, insightLine{
				Label: fmt.Sprintf("Growth %d to %d", ins.Growth.FromYear, ins.Growth.ToYear),
				Value: "undefined (no spending in base year)",
			})
		default:
			lines = append(lines, insightLine{
				Label: "Growth",
				Value: "undetermined (only one fiscal year in range)",
			})
		}
		return lines
	}

	lines = append(lines,
		insightLine{Label: "Top Department", Value: fmt.Sprintf("%s (%s)", ins.TopDepartment, core.FormatCurrency(ins.TopDepartmentTotal))},
		insightLine{Label: "Departments Analyzed", Value: strconv.Itoa(ins.DepartmentCount)},
	)
	return lines
}

// handleRecent renders the recent transactions table.
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	_, filtered, _, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}
	s.renderPartial(w, r, "recent.html", struct {
		Rows []recentRow
	}{Rows: recentTransactionRows(filtered)})
}

// Record count choices for the detailed transaction table. Zero means
// every row.
var transactionLimits = []int{50, 100, 500, 0}

var transactionSorts = []struct {
	Order analytics.SortOrder
	Label string
}{
	{analytics.SortDateDesc, "Date (Newest)"},
	{analytics.SortDateAsc, "Date (Oldest)"},
	{analytics.SortAmountDesc, "Amount (Highest)"},
	{analytics.SortAmountAsc, "Amount (Lowest)"},
}

// handleTransactions renders the detailed transaction table with the
// requested sort order and record count.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	_, filtered, _, ok := s.loadFiltered(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	order := analytics.SortOrder(q.Get("sort"))
	if order == "" {
		order = analytics.SortDateDesc
	}
	limit := transactionLimits[0]
	if v := q.Get("limit"); v != "" {
		if v == "all" {
			limit = 0
		} else if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows := analytics.SortTransactions(filtered, order)
	total := len(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	type limitOption struct {
		Value    string
		Label    string
		Selected bool
	}
	type sortOption struct {
		Value    string
		Label    string
		Selected bool
	}
	data := struct {
		Shown  string
		Total  string
		Limits []limitOption
		Sorts  []sortOption
		Rows   []detailRow
	}{
		Shown: core.FormatCount(len(rows)),
		Total: core.FormatCount(total),
		Rows:  detailRows(rows),
	}
	for _, n := range transactionLimits {
		opt := limitOption{Value: strconv.Itoa(n), Label: core.FormatCount(n), Selected: n == limit}
		if n == 0 {
			opt = limitOption{Value: "all", Label: "All", Selected: limit == 0}
		}
		data.Limits = append(data.Limits, opt)
	}
	for _, so := range transactionSorts {
		data.Sorts = append(data.Sorts, sortOption{
			Value:    string(so.Order),
			Label:    so.Label,
			Selected: so.Order == order,
		})
	}
	s.renderPartial(w, r, "transactions.html", data)
}

// handleSaveSelection persists the posted filter selection for the user
// and tells the client to reload the sections.
func (s *Server) handleSaveSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user := s.currentUser(ctx)

	sel, err := parseSelectionForm(r)
	if err != nil {
		s.logger.ErrorContext(ctx, "Parse form error", log.FieldError, err)
		w.WriteHeader(http.StatusBadRequest)
		writeErrorPartial(w, "Invalid request format")
		return
	}

	// Degenerate selections are stored too; the partials render the
	// corrective prompt until the user picks something again.
	if err := s.sessions.Save(ctx, user, sel); err != nil {
		s.logger.ErrorContext(ctx, "Selection save failed",
			log.FieldUser, user, log.FieldOperation, log.OpSelection, log.FieldError, err)
		w.WriteHeader(http.StatusInternalServerError)
		writeErrorPartial(w, "Could not save filter selection")
		return
	}

	s.logger.InfoContext(ctx, "Selection saved",
		log.FieldUser, user, log.FieldDepartment, sel.Department,
		"years", len(sel.Years), "categories", len(sel.Categories))

	w.Header().Set("HX-Trigger", "selection:changed")
	w.WriteHeader(http.StatusOK)
}

// handleRefresh drops every cached query result; the next section load
// re-reads the views.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	s.data.Refresh(ctx)
	s.logger.InfoContext(ctx, "Query cache invalidated", log.FieldOperation, log.OpRefresh)

	w.Header().Set("HX-Trigger", "data:refreshed")
	w.WriteHeader(http.StatusOK)
}

type recentRow struct {
	Date       string
	Department string
	Category   string
	Amount     string
	Director   string
}

type detailRow struct {
	Date       string
	Department string
	Category   string
	Amount     string
	Director   string
	FiscalYear int
}

func detailRows(txs []core.Transaction) []detailRow {
	rows := make([]detailRow, 0, len(txs))
	for _, t := range txs {
		director := "N/A"
		if t.HasDirector {
			director = t.DirectorName
		}
		rows = append(rows, detailRow{
			Date:       t.TransactionDate.Format("2006-01-02"),
			Department: t.DepartmentName,
			Category:   t.Category,
			Amount:     core.FormatCurrency(t.Amount),
			Director:   director,
			FiscalYear: t.FiscalYear,
		})
	}
	return rows
}

func trendRows(points []analytics.TrendPoint) []barRow {
	max := decimal.Zero
	for _, p := range points {
		if p.Amount.GreaterThan(max) {
			max = p.Amount
		}
	}
	var rows []barRow
	for _, p := range points {
		rows = append(rows, barRow{
			Label:  p.Date.Format("Jan 2006"),
			Amount: core.FormatCurrency(p.Amount),
			Width:  barWidth(p.Amount, max),
		})
	}
	return rows
}

func recentTransactionRows(filtered []core.Transaction) []recentRow {
	recent := analytics.RecentTransactions(filtered, 20)
	rows := make([]recentRow, 0, len(recent))
	for _, t := range recent {
		director := "N/A"
		if t.HasDirector {
			director = t.DirectorName
		}
		rows = append(rows, recentRow{
			Date:       t.TransactionDate.Format("2006-01-02"),
			Department: t.DepartmentName,
			Category:   t.Category,
			Amount:     core.FormatCurrency(t.Amount),
			Director:   director,
		})
	}
	return rows
}

// barWidth converts an amount to a rounded percent of max, keeping tiny
// non-zero values visible.
func barWidth(amount, max decimal.Decimal) int {
	if max.IsZero() || !amount.IsPositive() {
		return 0
	}
	width := int(amount.Mul(decimal.NewFromInt(100)).Div(max).Round(0).IntPart())
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}
