package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"campusledger/internal/core"
)

// GrowthStatus classifies the year-over-year growth result. Growth is only
// reported as a number when a sound comparison exists; the degenerate
// cases are explicit values instead of NaN or infinity.
type GrowthStatus string

const (
	// GrowthKnown means Percent holds a valid year-over-year figure.
	GrowthKnown GrowthStatus = "known"
	// GrowthUndetermined means fewer than two distinct fiscal years were
	// present, so there is nothing to compare.
	GrowthUndetermined GrowthStatus = "undetermined"
	// GrowthUndefined means the previous-year total was zero and the
	// ratio does not exist.
	GrowthUndefined GrowthStatus = "undefined"
)

type (
	// Growth is the year-over-year change between the two most recent
	// distinct fiscal years in the data.
	Growth struct {
		Status   GrowthStatus
		FromYear int
		ToYear   int
		Percent  decimal.Decimal
	}

	// Insight is the narrative summary for one expenditure category. For
	// a single-department selection it carries year-over-year growth; for
	// "All" it identifies the top-spending department instead.
	Insight struct {
		HasData          bool
		Department       string // selection department, possibly "All"
		Total            decimal.Decimal
		AverageMonthly   decimal.Decimal
		TransactionCount int
		DepartmentCount  int

		Growth             *Growth // single-department mode only
		TopDepartment      string  // "All" mode only
		TopDepartmentTotal decimal.Decimal
	}
)

var hundred = decimal.NewFromInt(100)

// YearOverYearGrowth compares the last two entries of an ascending yearly
// series: (latest - previous) / previous * 100.
func YearOverYearGrowth(yearly []YearTotal) Growth {
	if len(yearly) < 2 {
		return Growth{Status: GrowthUndetermined}
	}
	latest := yearly[len(yearly)-1]
	previous := yearly[len(yearly)-2]
	if previous.Amount.IsZero() {
		return Growth{
			Status:   GrowthUndefined,
			FromYear: previous.FiscalYear,
			ToYear:   latest.FiscalYear,
		}
	}
	return Growth{
		Status:   GrowthKnown,
		FromYear: previous.FiscalYear,
		ToYear:   latest.FiscalYear,
		Percent:  latest.Amount.Sub(previous.Amount).Div(previous.Amount).Mul(hundred),
	}
}

// Insights derives the summary insight for one category's rows under the
// given selection. Total for any input: empty categoryData yields
// HasData=false rather than an error, and the division-by-zero cases in
// the growth calculation come back as explicit statuses.
func Insights(categoryData []core.Transaction, sel core.Selection) Insight {
	ins := Insight{Department: sel.Department}
	if len(categoryData) == 0 {
		return ins
	}

	ins.HasData = true
	ins.Total = core.SumAmounts(categoryData)
	ins.AverageMonthly = averageMonthly(categoryData)
	ins.TransactionCount = len(categoryData)
	ins.DepartmentCount = len(core.Departments(categoryData))

	if sel.Department != core.AllDepartments {
		g := YearOverYearGrowth(YearlyTotals(categoryData))
		ins.Growth = &g
		return ins
	}

	// "All" mode: top department by summed amount, alphabetical
	// tie-break (DepartmentTotals is already alphabetical, so the first
	// maximum encountered wins deterministically).
	perDept := make(map[string]decimal.Decimal)
	for _, t := range categoryData {
		perDept[t.DepartmentName] = perDept[t.DepartmentName].Add(t.Amount)
	}
	for _, dept := range core.Departments(categoryData) {
		amount := perDept[dept]
		if ins.TopDepartment == "" || amount.GreaterThan(ins.TopDepartmentTotal) {
			ins.TopDepartment = dept
			ins.TopDepartmentTotal = amount
		}
	}
	return ins
}

// Spike flags a department and category pair whose latest fiscal year
// spending ran well above its earlier average.
type Spike struct {
	Department string
	Category   string
	FiscalYear int
	Percent    decimal.Decimal
}

// SpendingSpikes compares, for every department and category pair, the
// latest fiscal year total against the mean of the prior yearly totals.
// Pairs whose increase exceeds thresholdPercent come back largest first,
// ties broken by department then category. Pairs with a single fiscal
// year or a non-positive baseline are skipped.
func SpendingSpikes(txs []core.Transaction, thresholdPercent int64) []Spike {
	type pair struct {
		dept, cat string
	}
	byYear := make(map[pair]map[int]decimal.Decimal)
	for _, t := range txs {
		p := pair{t.DepartmentName, t.Category}
		if byYear[p] == nil {
			byYear[p] = make(map[int]decimal.Decimal)
		}
		byYear[p][t.FiscalYear] = byYear[p][t.FiscalYear].Add(t.Amount)
	}

	threshold := decimal.NewFromInt(thresholdPercent)
	var spikes []Spike
	for p, years := range byYear {
		if len(years) < 2 {
			continue
		}
		latest := 0
		for y := range years {
			if y > latest {
				latest = y
			}
		}
		baseline := decimal.Zero
		prior := 0
		for y, amount := range years {
			if y != latest {
				baseline = baseline.Add(amount)
				prior++
			}
		}
		baseline = baseline.Div(decimal.NewFromInt(int64(prior)))
		if !baseline.IsPositive() {
			continue
		}
		pct := years[latest].Sub(baseline).Div(baseline).Mul(hundred)
		if pct.GreaterThan(threshold) {
			spikes = append(spikes, Spike{
				Department: p.dept,
				Category:   p.cat,
				FiscalYear: latest,
				Percent:    pct,
			})
		}
	}

	sort.Slice(spikes, func(i, j int) bool {
		if !spikes[i].Percent.Equal(spikes[j].Percent) {
			return spikes[i].Percent.GreaterThan(spikes[j].Percent)
		}
		if spikes[i].Department != spikes[j].Department {
			return spikes[i].Department < spikes[j].Department
		}
		return spikes[i].Category < spikes[j].Category
	})
	return spikes
}
