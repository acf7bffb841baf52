package analytics

import (
	"errors"
	"reflect"
	"testing"

	"campusledger/internal/core"
)

func TestFilterConjunction(t *testing.T) {
	txs := []core.Transaction{
		tx("Marketing", "travel", 2023, 1, "10"),
		tx("Marketing", "equipment", 2023, 2, "20"),
		tx("Biology", "travel", 2023, 3, "30"),
		tx("Marketing", "travel", 2021, 4, "40"),
	}
	sel := core.Selection{
		Years:      []int{2023},
		Categories: []string{"travel"},
		Department: "Marketing",
	}

	got, err := Filter(txs, sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || !got[0].Amount.Equal(dec("10")) {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestFilterAllDepartments(t *testing.T) {
	txs := []core.Transaction{
		tx("Marketing", "travel", 2023, 1, "10"),
		tx("Biology", "travel", 2023, 3, "30"),
	}
	sel := core.Selection{
		Years:      []int{2023},
		Categories: []string{"travel"},
		Department: core.AllDepartments,
	}

	got, err := Filter(txs, sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("All must keep both departments, got %d rows", len(got))
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	// The transaction view orders by date descending; Filter must not
	// disturb that.
	txs := []core.Transaction{
		tx("Marketing", "travel", 2023, 12, "1"),
		tx("Marketing", "travel", 2023, 6, "2"),
		tx("Marketing", "travel", 2023, 1, "3"),
	}
	sel := core.Selection{Years: []int{2023}, Categories: []string{"travel"}, Department: core.AllDepartments}

	got, err := Filter(txs, sel)
	if err != nil {
		t.Fatal(err)
	}
	for i := range txs {
		if !got[i].Amount.Equal(txs[i].Amount) {
			t.Fatalf("order disturbed at %d: %+v", i, got)
		}
	}
}

func TestFilterIdempotent(t *testing.T) {
	txs := []core.Transaction{
		tx("Marketing", "travel", 2023, 1, "10"),
		tx("Biology", "equipment", 2022, 2, "20"),
		tx("Marketing", "equipment", 2023, 3, "30"),
	}
	sel := core.Selection{
		Years:      []int{2022, 2023},
		Categories: []string{"equipment"},
		Department: core.AllDepartments,
	}

	once, err := Filter(txs, sel)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Filter(once, sel)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filter not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestFilterDegenerateSelections(t *testing.T) {
	txs := []core.Transaction{tx("Marketing", "travel", 2023, 1, "10")}

	if _, err := Filter(txs, core.Selection{Categories: []string{"travel"}}); !errors.Is(err, core.ErrNoYears) {
		t.Fatalf("expected ErrNoYears, got %v", err)
	}
	if _, err := Filter(txs, core.Selection{Years: []int{2023}}); !errors.Is(err, core.ErrNoCategories) {
		t.Fatalf("expected ErrNoCategories, got %v", err)
	}
}

func TestByCategory(t *testing.T) {
	txs := []core.Transaction{
		tx("Marketing", "travel", 2023, 1, "10"),
		tx("Marketing", "equipment", 2023, 2, "20"),
	}
	got := ByCategory(txs, "equipment")
	if len(got) != 1 || got[0].Category != "equipment" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if got := ByCategory(txs, "missing"); len(got) != 0 {
		t.Fatalf("expected no rows, got %+v", got)
	}
}
