package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"campusledger/internal/core"
)

var csvHeader = []string{
	"department_name",
	"department_code",
	"transaction_date",
	"expenditure_category",
	"amount",
	"fiscal_year",
	"fiscal_month",
	"director_name",
	"director_start_date",
	"is_current_director",
}

// WriteCSV writes the filtered rows with every column, rows in input
// order. An empty slice still produces the header line.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range txs {
		director, start, current := "", "", ""
		if t.HasDirector {
			director = t.DirectorName
			start = t.DirectorStart.Format("2006-01-02")
			current = fmt.Sprintf("%t", t.IsCurrentDirector)
		}
		record := []string{
			t.DepartmentName,
			t.DepartmentCode,
			t.TransactionDate.Format("2006-01-02"),
			t.Category,
			t.Amount.String(),
			fmt.Sprintf("%d", t.FiscalYear),
			fmt.Sprintf("%d", t.FiscalMonth),
			director,
			start,
			current,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
