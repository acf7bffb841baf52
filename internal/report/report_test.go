package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"campusledger/internal/core"
)

func fixedBuilder() *Builder {
	return &Builder{Now: func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	}}
}

func tx(dept, cat string, year, month, day int, amount string) core.Transaction {
	return core.Transaction{
		DepartmentName:  dept,
		DepartmentCode:  strings.ToUpper(dept[:3]),
		TransactionDate: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC),
		Category:        cat,
		Amount:          decimal.RequireFromString(amount),
		FiscalYear:      year,
		FiscalMonth:     month,
	}
}

func selection(dept string, years []int, cats []string) core.Selection {
	return core.Selection{Years: years, Categories: cats, Department: dept}
}

func TestFileNamesUseClock(t *testing.T) {
	b := fixedBuilder()

	if got, want := b.CSVFileName("admin"), "finance_data_admin_20250314_092653.csv"; got != want {
		t.Errorf("CSVFileName = %q, want %q", got, want)
	}
	if got, want := b.HTMLFileName("admin"), "complete_dashboard_admin_20250314_092653.html"; got != want {
		t.Errorf("HTMLFileName = %q, want %q", got, want)
	}
}

func TestBuildHTMLIsDeterministic(t *testing.T) {
	b := fixedBuilder()
	txs := []core.Transaction{
		tx("Marketing", "travel", 2024, 1, 15, "100.00"),
		tx("Biology", "travel", 2024, 2, 10, "250.00"),
		tx("Marketing", "equipment", 2025, 1, 5, "75.50"),
	}
	sel := selection(core.AllDepartments, []int{2024, 2025}, []string{"travel", "equipment"})

	first, err := b.BuildHTML("admin", txs, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML: %v", err)
	}
	second, err := b.BuildHTML("admin", txs, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML second call: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("identical inputs produced different documents")
	}
}

func TestBuildHTMLContainsContextAndMetrics(t *testing.T) {
	b := fixedBuilder()
	txs := []core.Transaction{
		tx("Marketing", "travel", 2024, 1, 15, "1000.00"),
		tx("Marketing", "travel", 2024, 2, 10, "500.00"),
	}
	sel := selection("Marketing", []int{2024}, []string{"travel"})

	out, err := b.BuildHTML("marketing_director", txs, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML: %v", err)
	}
	html := string(out)

	for _, want := range []string{
		"Generated for marketing_director on March 14, 2025 at 9:26 AM",
		"Department: Marketing",
		"Fiscal years: 2024",
		"$1,500.00",
		"Travel Deep Dive",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestBuildHTMLOmitsComparisonForSingleDepartment(t *testing.T) {
	b := fixedBuilder()
	single := []core.Transaction{tx("Marketing", "travel", 2024, 1, 15, "100.00")}
	multi := append(single, tx("Biology", "travel", 2024, 1, 20, "200.00"))
	sel := selection(core.AllDepartments, []int{2024}, []string{"travel"})

	out, err := b.BuildHTML("admin", single, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML: %v", err)
	}
	if strings.Contains(string(out), "Department Comparison") {
		t.Error("comparison section rendered with a single visible department")
	}

	out, err = b.BuildHTML("admin", multi, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML: %v", err)
	}
	if !strings.Contains(string(out), "Department Comparison") {
		t.Error("comparison section missing with two visible departments")
	}
}

func TestBuildHTMLEmptySelectionFallsBack(t *testing.T) {
	b := fixedBuilder()
	sel := selection(core.AllDepartments, []int{2024}, []string{"travel"})

	out, err := b.BuildHTML("admin", nil, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML: %v", err)
	}
	html := string(out)

	if !strings.Contains(html, "No data available") {
		t.Error("empty data should render placeholder sections")
	}
	if !strings.Contains(html, "No transactions in the current selection") {
		t.Error("empty data should render recent transactions placeholder")
	}
	if !strings.Contains(html, "No data available for travel") {
		t.Error("empty data should render insight fallback")
	}
}

func TestBuildHTMLRecentTransactionsCapped(t *testing.T) {
	b := fixedBuilder()
	var txs []core.Transaction
	for day := 1; day <= 25; day++ {
		txs = append(txs, tx("Marketing", "travel", 2024, 1, day, "10.00"))
	}
	sel := selection("Marketing", []int{2024}, []string{"travel"})

	out, err := b.BuildHTML("admin", txs, sel, "travel")
	if err != nil {
		t.Fatalf("BuildHTML: %v", err)
	}
	html := string(out)

	if !strings.Contains(html, "2024-01-25") {
		t.Error("most recent transaction missing from table")
	}
	if strings.Contains(html, "2024-01-05") {
		t.Error("table should cap at the 20 most recent rows")
	}
	if got := strings.Count(html, "<td>2024-01-"); got != 20 {
		t.Errorf("recent table has %d rows, want 20", got)
	}
}

func TestWriteCSV(t *testing.T) {
	start := time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)
	withDirector := tx("Marketing", "travel", 2024, 1, 15, "100.50")
	withDirector.DirectorName = "Dana Reyes"
	withDirector.HasDirector = true
	withDirector.DirectorStart = start
	withDirector.IsCurrentDirector = true

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []core.Transaction{withDirector, tx("Biology", "equipment", 2024, 2, 3, "42.00")}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "Marketing,MAR,2024-01-15,travel,100.5,2024,1,Dana Reyes,2020-07-01,true" {
		t.Errorf("row with director = %q", lines[1])
	}
	if lines[2] != "Biology,BIO,2024-02-03,equipment,42,2024,2,,," {
		t.Errorf("row without director = %q", lines[2])
	}
}

func TestWriteCSVEmptyKeepsHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(csvHeader, ",") {
		t.Errorf("empty export = %q, want header only", got)
	}
}

func TestTitleCaseHandlesMultibyteRunes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"software subscriptions", "Software Subscriptions"},
		{"équipement de labo", "Équipement De Labo"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := titleCase(tc.in); got != tc.want {
			t.Errorf("titleCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
