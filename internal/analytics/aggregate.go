package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"campusledger/internal/core"
)

type (
	// TrendPoint is one point of the spending-over-time series. Date is
	// synthesized as the first day of the fiscal year/month.
	TrendPoint struct {
		Date        time.Time
		FiscalYear  int
		FiscalMonth int
		Amount      decimal.Decimal
	}

	// CategoryTotal is one slice of the category breakdown.
	CategoryTotal struct {
		Category string
		Amount   decimal.Decimal
	}

	// DepartmentYearTotal is one bar of the department comparison chart.
	DepartmentYearTotal struct {
		Department string
		FiscalYear int
		Amount     decimal.Decimal
	}

	// YearTotal is one point of a per-year series.
	YearTotal struct {
		FiscalYear int
		Amount     decimal.Decimal
	}

	// MonthAverage is one bar of the seasonality chart: the mean
	// transaction amount for a fiscal month across all selected years.
	MonthAverage struct {
		Month   int
		Average decimal.Decimal
	}

	// Overview is the key-metric strip above the charts.
	Overview struct {
		Total            decimal.Decimal
		AverageMonthly   decimal.Decimal
		TransactionCount int
		CategoryCount    int
	}
)

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// Name returns the short English month name.
func (m MonthAverage) Name() string {
	if m.Month < 1 || m.Month > 12 {
		return ""
	}
	return monthNames[m.Month-1]
}

// Trend groups txs by (fiscal year, fiscal month) and sums amounts,
// optionally restricting to a category subset first. One point per
// distinct period present in the input, ascending. Empty input yields an
// empty (never nil-error) series; callers render it as a "no data" state.
func Trend(txs []core.Transaction, categories []string) []TrendPoint {
	include := func(core.Transaction) bool { return true }
	if len(categories) > 0 {
		set := make(map[string]bool, len(categories))
		for _, c := range categories {
			set[c] = true
		}
		include = func(t core.Transaction) bool { return set[t.Category] }
	}

	groups := make(map[int]decimal.Decimal)
	for _, t := range txs {
		if !include(t) {
			continue
		}
		key := t.FiscalYear*100 + t.FiscalMonth
		groups[key] = groups[key].Add(t.Amount)
	}

	points := make([]TrendPoint, 0, len(groups))
	for key, amount := range groups {
		year, month := key/100, key%100
		points = append(points, TrendPoint{
			Date:        time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
			FiscalYear:  year,
			FiscalMonth: month,
			Amount:      amount,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}

// CategoryBreakdown sums amounts per expenditure category, optionally
// restricting to a year subset first. Results are sorted alphabetically;
// the sum of all totals equals the sum of the (year-restricted) input
// exactly.
func CategoryBreakdown(txs []core.Transaction, years []int) []CategoryTotal {
	include := func(core.Transaction) bool { return true }
	if len(years) > 0 {
		set := make(map[int]bool, len(years))
		for _, y := range years {
			set[y] = true
		}
		include = func(t core.Transaction) bool { return set[t.FiscalYear] }
	}

	groups := make(map[string]decimal.Decimal)
	for _, t := range txs {
		if !include(t) {
			continue
		}
		groups[t.Category] = groups[t.Category].Add(t.Amount)
	}

	out := make([]CategoryTotal, 0, len(groups))
	for cat, amount := range groups {
		out = append(out, CategoryTotal{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// DepartmentTotals sums amounts per (department, fiscal year) for the
// cross-department comparison chart. Callers must omit the comparison
// entirely when only one department is visible; this function does not
// decide that.
func DepartmentTotals(txs []core.Transaction) []DepartmentYearTotal {
	type key struct {
		dept string
		year int
	}
	groups := make(map[key]decimal.Decimal)
	for _, t := range txs {
		k := key{t.DepartmentName, t.FiscalYear}
		groups[k] = groups[k].Add(t.Amount)
	}

	out := make([]DepartmentYearTotal, 0, len(groups))
	for k, amount := range groups {
		out = append(out, DepartmentYearTotal{Department: k.dept, FiscalYear: k.year, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Department != out[j].Department {
			return out[i].Department < out[j].Department
		}
		return out[i].FiscalYear < out[j].FiscalYear
	})
	return out
}

// YearlyTotals sums amounts per fiscal year, ascending. Used for the
// single-department deep-dive trend and the growth calculation.
func YearlyTotals(txs []core.Transaction) []YearTotal {
	groups := make(map[int]decimal.Decimal)
	for _, t := range txs {
		groups[t.FiscalYear] = groups[t.FiscalYear].Add(t.Amount)
	}

	out := make([]YearTotal, 0, len(groups))
	for year, amount := range groups {
		out = append(out, YearTotal{FiscalYear: year, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalYear < out[j].FiscalYear })
	return out
}

// MonthlyPattern computes the mean transaction amount per fiscal month
// across the input, ascending by month. Months with no activity are
// absent from the result rather than reported as zero.
func MonthlyPattern(txs []core.Transaction) []MonthAverage {
	sums := make(map[int]decimal.Decimal)
	counts := make(map[int]int64)
	for _, t := range txs {
		sums[t.FiscalMonth] = sums[t.FiscalMonth].Add(t.Amount)
		counts[t.FiscalMonth]++
	}

	out := make([]MonthAverage, 0, len(sums))
	for month, sum := range sums {
		out = append(out, MonthAverage{
			Month:   month,
			Average: sum.Div(decimal.NewFromInt(counts[month])),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// RecentTransactions returns up to limit rows sorted by transaction date
// descending. The input slice is left untouched.
func RecentTransactions(txs []core.Transaction, limit int) []core.Transaction {
	sorted := SortTransactions(txs, SortDateDesc)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// SortOrder identifies an ordering of the detailed transaction table.
type SortOrder string

const (
	SortDateDesc   SortOrder = "date_desc"
	SortDateAsc    SortOrder = "date_asc"
	SortAmountDesc SortOrder = "amount_desc"
	SortAmountAsc  SortOrder = "amount_asc"
)

// SortTransactions returns a sorted copy of txs. The sort is stable, so
// rows that compare equal keep their input order. Unknown orders fall
// back to newest-first.
func SortTransactions(txs []core.Transaction, order SortOrder) []core.Transaction {
	sorted := append([]core.Transaction(nil), txs...)
	switch order {
	case SortDateAsc:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].TransactionDate.Before(sorted[j].TransactionDate)
		})
	case SortAmountDesc:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Amount.GreaterThan(sorted[j].Amount)
		})
	case SortAmountAsc:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Amount.LessThan(sorted[j].Amount)
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].TransactionDate.After(sorted[j].TransactionDate)
		})
	}
	return sorted
}

// Summarize computes the key metrics for the filtered set. AverageMonthly
// is the mean of per-(year,month) sums over months that actually have
// activity; absent months are excluded, not treated as zero.
func Summarize(txs []core.Transaction) Overview {
	o := Overview{
		Total:            core.SumAmounts(txs),
		TransactionCount: len(txs),
		CategoryCount:    len(core.Categories(txs)),
	}
	o.AverageMonthly = averageMonthly(txs)
	return o
}

// averageMonthly is the mean of the per-(fiscal year, month) sums. Zero
// when no rows are present.
func averageMonthly(txs []core.Transaction) decimal.Decimal {
	if len(txs) == 0 {
		return decimal.Zero
	}
	months := make(map[int]bool)
	for _, t := range txs {
		months[t.FiscalYear*100+t.FiscalMonth] = true
	}
	return core.SumAmounts(txs).Div(decimal.NewFromInt(int64(len(months))))
}
