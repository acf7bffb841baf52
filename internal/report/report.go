// Package report assembles the downloadable artifacts: the self-contained
// HTML dashboard report and the CSV export. Everything is a pure function
// of its inputs except the "generated at" stamp, which comes from an
// injected clock so tests can pin it.
package report

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"campusledger/internal/analytics"
	"campusledger/internal/core"
)

const recentTransactionLimit = 20

// Builder produces reports. Now is the only impurity; it defaults to
// time.Now and tests replace it with a fixed clock.
type Builder struct {
	Now func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

// HTMLFileName returns the download name for the full dashboard report.
func (b *Builder) HTMLFileName(user string) string {
	return fmt.Sprintf("complete_dashboard_%s_%s.html", user, b.Now().Format("20060102_150405"))
}

// CSVFileName returns the download name for the raw data export.
func (b *Builder) CSVFileName(user string) string {
	return fmt.Sprintf("finance_data_%s_%s.csv", user, b.Now().Format("20060102_150405"))
}

type (
	barRow struct {
		Label   string
		Value   string
		Percent int
	}

	groupedBarRow struct {
		Group string
		Bars  []barRow
	}

	recentRow struct {
		Date       string
		Department string
		Category   string
		Amount     string
		Director   string
	}

	section struct {
		OK          bool
		Placeholder string
		Bars        []barRow
		Groups      []groupedBarRow
	}

	reportData struct {
		User            string
		GeneratedAt     string
		DeptContext     string
		YearsContext    string
		CategoryContext string

		TotalSpending  string
		AverageMonthly string
		Transactions   string
		Categories     int

		Trend           section
		Breakdown       section
		ShowDepartments bool
		Departments     section

		AnalysisCategory string
		DeepDiveTrend    section
		Seasonality      section
		InsightLines     []string

		Recent []recentRow
	}
)

// BuildHTML renders the complete dashboard report for the filtered rows.
// Each section degrades to placeholder text on failure; the document is
// always produced.
func (b *Builder) BuildHTML(user string, filtered []core.Transaction, sel core.Selection, analysisCategory string) ([]byte, error) {
	overview := analytics.Summarize(filtered)

	data := reportData{
		User:            user,
		GeneratedAt:     b.Now().Format("January 2, 2006 at 3:04 PM"),
		DeptContext:     deptContext(sel),
		YearsContext:    yearsContext(sel),
		CategoryContext: categoriesContext(sel),

		TotalSpending:  core.FormatCurrency(overview.Total),
		AverageMonthly: core.FormatCurrency(overview.AverageMonthly),
		Transactions:   core.FormatCount(overview.TransactionCount),
		Categories:     overview.CategoryCount,

		AnalysisCategory: titleCase(analysisCategory),
	}

	data.Trend = buildSection("trend data unavailable", func() section {
		return trendSection(analytics.Trend(filtered, sel.Categories))
	})
	data.Breakdown = buildSection("category chart unavailable", func() section {
		return breakdownSection(analytics.CategoryBreakdown(filtered, sel.Years))
	})

	// The comparison is meaningless with a single visible department and
	// must be omitted, not rendered empty.
	if len(core.Departments(filtered)) > 1 {
		data.ShowDepartments = true
		data.Departments = buildSection("department comparison unavailable", func() section {
			return departmentSection(analytics.DepartmentTotals(filtered))
		})
	}

	categoryData := analytics.ByCategory(filtered, analysisCategory)
	data.DeepDiveTrend = buildSection("no data available for category analysis", func() section {
		return deepDiveSection(categoryData, sel)
	})
	data.Seasonality = buildSection("no data available for seasonality analysis", func() section {
		return seasonalitySection(analytics.MonthlyPattern(categoryData))
	})
	data.InsightLines = insightLines(analytics.Insights(categoryData, sel), analysisCategory)
	data.Recent = recentRows(filtered)

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}
	return buf.Bytes(), nil
}

// buildSection runs build and converts a panic into a placeholder section
// so a single bad derivation never aborts the whole export.
func buildSection(placeholder string, build func() section) (s section) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Report section failed", "placeholder", placeholder, "panic", r)
			s = section{Placeholder: placeholder}
		}
	}()
	s = build()
	if !s.OK && s.Placeholder == "" {
		s.Placeholder = placeholder
	}
	return s
}

func trendSection(points []analytics.TrendPoint) section {
	if len(points) == 0 {
		return section{Placeholder: "No data available"}
	}
	max := maxAmount(points, func(p analytics.TrendPoint) decimal.Decimal { return p.Amount })
	s := section{OK: true}
	for _, p := range points {
		s.Bars = append(s.Bars, barRow{
			Label:   p.Date.Format("Jan 2006"),
			Value:   core.FormatCurrency(p.Amount),
			Percent: percentOf(p.Amount, max),
		})
	}
	return s
}

func breakdownSection(totals []analytics.CategoryTotal) section {
	if len(totals) == 0 {
		return section{Placeholder: "No data available"}
	}
	sum := decimal.Zero
	for _, c := range totals {
		sum = sum.Add(c.Amount)
	}
	s := section{OK: true}
	for _, c := range totals {
		s.Bars = append(s.Bars, barRow{
			Label:   c.Category,
			Value:   core.FormatCurrency(c.Amount),
			Percent: percentOf(c.Amount, sum),
		})
	}
	return s
}

func departmentSection(totals []analytics.DepartmentYearTotal) section {
	if len(totals) == 0 {
		return section{Placeholder: "No data available"}
	}
	max := maxAmount(totals, func(t analytics.DepartmentYearTotal) decimal.Decimal { return t.Amount })

	s := section{OK: true}
	var current *groupedBarRow
	for _, t := range totals {
		if current == nil || current.Group != t.Department {
			s.Groups = append(s.Groups, groupedBarRow{Group: t.Department})
			current = &s.Groups[len(s.Groups)-1]
		}
		current.Bars = append(current.Bars, barRow{
			Label:   fmt.Sprintf("FY %d", t.FiscalYear),
			Value:   core.FormatCurrency(t.Amount),
			Percent: percentOf(t.Amount, max),
		})
	}
	return s
}

func deepDiveSection(categoryData []core.Transaction, sel core.Selection) section {
	if len(categoryData) == 0 {
		return section{}
	}
	if sel.Department != core.AllDepartments {
		yearly := analytics.YearlyTotals(categoryData)
		max := maxAmount(yearly, func(y analytics.YearTotal) decimal.Decimal { return y.Amount })
		s := section{OK: true}
		for _, y := range yearly {
			s.Bars = append(s.Bars, barRow{
				Label:   fmt.Sprintf("FY %d", y.FiscalYear),
				Value:   core.FormatCurrency(y.Amount),
				Percent: percentOf(y.Amount, max),
			})
		}
		return s
	}
	return departmentSection(analytics.DepartmentTotals(categoryData))
}

func seasonalitySection(pattern []analytics.MonthAverage) section {
	if len(pattern) == 0 {
		return section{}
	}
	max := maxAmount(pattern, func(m analytics.MonthAverage) decimal.Decimal { return m.Average })
	s := section{OK: true}
	for _, m := range pattern {
		s.Bars = append(s.Bars, barRow{
			Label:   m.Name(),
			Value:   core.FormatCurrency(m.Average),
			Percent: percentOf(m.Average, max),
		})
	}
	return s
}

func insightLines(ins analytics.Insight, analysisCategory string) []string {
	if !ins.HasData {
		return []string{fmt.Sprintf("No data available for %s", analysisCategory)}
	}

	title := titleCase(analysisCategory)
	lines := []string{
		fmt.Sprintf("Total %s Spending: %s", title, core.FormatCurrency(ins.Total)),
		fmt.Sprintf("Average Monthly: %s", core.FormatCurrency(ins.AverageMonthly)),
	}

	if ins.Growth != nil {
		lines = append(lines, fmt.Sprintf("Department Focus: %s", ins.Department))
		switch ins.Growth.Status {
		case analytics.GrowthKnown:
			lines = append(lines, fmt.Sprintf(
				"Year-over-Year Growth (%d to %d): %+.1f%%",
				ins.Growth.FromYear, ins.Growth.ToYear, ins.Growth.Percent.InexactFloat64()))
		case analytics.GrowthUndefined:
			lines = append(lines, fmt.Sprintf(
				"Year-over-Year Growth (%d to %d): undefined (no spending in base year)",
				ins.Growth.FromYear, ins.Growth.ToYear))
		default:
			lines = append(lines, "Year-over-Year Growth: undetermined (only one fiscal year in range)")
		}
		return lines
	}

	lines = append(lines,
		fmt.Sprintf("Top Department: %s (%s)", ins.TopDepartment, core.FormatCurrency(ins.TopDepartmentTotal)),
		fmt.Sprintf("Departments Analyzed: %d", ins.DepartmentCount),
	)
	return lines
}

// recentRows returns up to 20 rows sorted by transaction date descending.
func recentRows(filtered []core.Transaction) []recentRow {
	recent := analytics.RecentTransactions(filtered, recentTransactionLimit)
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

func deptContext(sel core.Selection) string {
	if sel.Department == core.AllDepartments {
		return "All Departments"
	}
	return sel.Department
}

func yearsContext(sel core.Selection) string {
	if len(sel.Years) == 0 {
		return "No years"
	}
	years := append([]int(nil), sel.Years...)
	sort.Ints(years)
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprintf("%d", y)
	}
	return strings.Join(parts, ", ")
}

func categoriesContext(sel core.Selection) string {
	switch {
	case len(sel.Categories) == 0:
		return "No categories"
	case len(sel.Categories) <= 5:
		return strings.Join(sel.Categories, ", ")
	default:
		return fmt.Sprintf("%d categories", len(sel.Categories))
	}
}

func maxAmount[T any](items []T, amount func(T) decimal.Decimal) decimal.Decimal {
	max := decimal.Zero
	for _, it := range items {
		if a := amount(it); a.GreaterThan(max) {
			max = a
		}
	}
	return max
}

func percentOf(amount, max decimal.Decimal) int {
	if max.IsZero() {
		return 0
	}
	p := amount.Mul(decimal.NewFromInt(100)).Div(max).IntPart()
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return int(p)
}

// titleCase upper-cases the first letter of every space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
