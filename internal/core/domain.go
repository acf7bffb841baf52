package core

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AllDepartments is the Selection.Department value meaning "no department
// restriction". Everything the viewer is entitled to see stays in scope.
const AllDepartments = "All"

type (
	// Transaction is one financial transaction from the row-filtered
	// transaction view. Rows arrive already restricted to the departments
	// the querying user is entitled to; nothing in this codebase re-derives
	// that visibility.
	Transaction struct {
		DepartmentName    string
		DepartmentCode    string
		TransactionDate   time.Time
		Category          string
		Amount            decimal.Decimal
		FiscalYear        int
		FiscalMonth       int // 1-12
		DirectorName      string
		HasDirector       bool
		DirectorStart     time.Time
		IsCurrentDirector bool
	}

	// SummaryRow is a pre-aggregated row from the summary view. Derived
	// upstream; consumed as-is.
	SummaryRow struct {
		DepartmentName string
		DepartmentCode string
		FiscalYear     int
		FiscalMonth    int
		Category       string
		TotalAmount    decimal.Decimal
		Count          int64
		AverageAmount  decimal.Decimal
		DirectorName   string
		DirectorStart  time.Time
	}

	// Entitlement grants a user visibility into one department. Display
	// only: the database enforces it, this app never filters by it.
	Entitlement struct {
		AccessLevel    string
		DepartmentName string
		DepartmentCode string
	}

	// Selection is the user's current year/category/department filter
	// combination. It is a value object passed explicitly into every
	// aggregation call and persisted per user between interactions.
	Selection struct {
		Years      []int
		Categories []string
		Department string
	}
)

var (
	ErrNoYears      = errors.New("select at least one fiscal year")
	ErrNoCategories = errors.New("select at least one expenditure category")
	ErrInvalidMonth = errors.New("fiscal month must be between 1 and 12")
)

// Validate reports whether the selection can drive a render pass. An empty
// year or category set is a configuration error the caller must surface as
// a corrective prompt, not a crash.
func (s Selection) Validate() error {
	if len(s.Years) == 0 {
		return ErrNoYears
	}
	if len(s.Categories) == 0 {
		return ErrNoCategories
	}
	return nil
}

// HasYear reports whether year is part of the selection.
func (s Selection) HasYear(year int) bool {
	for _, y := range s.Years {
		if y == year {
			return true
		}
	}
	return false
}

// HasCategory reports whether category is part of the selection.
func (s Selection) HasCategory(category string) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Matches reports whether a transaction satisfies the selection predicate:
// year AND category AND (department or "All").
func (s Selection) Matches(t Transaction) bool {
	if !s.HasYear(t.FiscalYear) {
		return false
	}
	if !s.HasCategory(t.Category) {
		return false
	}
	return s.Department == AllDepartments || s.Department == t.DepartmentName
}

// Normalize returns a copy with years and categories sorted and
// deduplicated, and an empty department mapped to AllDepartments.
func (s Selection) Normalize() Selection {
	out := Selection{Department: strings.TrimSpace(s.Department)}
	seenYears := make(map[int]bool, len(s.Years))
	for _, y := range s.Years {
		if seenYears[y] {
			continue
		}
		seenYears[y] = true
		out.Years = append(out.Years, y)
	}
	sort.Ints(out.Years)
	seen := make(map[string]bool, len(s.Categories))
	for _, c := range s.Categories {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out.Categories = append(out.Categories, c)
	}
	sort.Strings(out.Categories)
	if out.Department == "" {
		out.Department = AllDepartments
	}
	return out
}

func (t Transaction) Validate() error {
	if t.FiscalMonth < 1 || t.FiscalMonth > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Departments returns the distinct department names present in txs,
// sorted alphabetically.
func Departments(txs []Transaction) []string {
	return distinct(txs, func(t Transaction) string { return t.DepartmentName })
}

// Categories returns the distinct expenditure categories present in txs,
// sorted alphabetically.
func Categories(txs []Transaction) []string {
	return distinct(txs, func(t Transaction) string { return t.Category })
}

// Years returns the distinct fiscal years present in txs, ascending.
func Years(txs []Transaction) []int {
	seen := make(map[int]bool)
	var out []int
	for _, t := range txs {
		if !seen[t.FiscalYear] {
			seen[t.FiscalYear] = true
			out = append(out, t.FiscalYear)
		}
	}
	sort.Ints(out)
	return out
}

func distinct(txs []Transaction, key func(Transaction) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range txs {
		k := key(t)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
