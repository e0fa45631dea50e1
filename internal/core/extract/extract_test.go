package extract

import (
	"testing"
	"time"
)

func TestExtractInvoiceDocument(t *testing.T) {
	text := `Facture N° INV-2024-001
Date: 15/01/2024
Montant total: 1 234,56 €
Contact: jean.dupont@example.fr ou +33 6 12 34 56 78`

	result := Extract(text)

	refs := result.References["invoice_number"]
	if len(refs) != 1 || refs[0] != "INV-2024-001" {
		t.Fatalf("invoice_number = %v, want [INV-2024-001]", refs)
	}
	if result.AmountCount != 1 {
		t.Fatalf("AmountCount = %d, want 1", result.AmountCount)
	}
	if result.AmountTotal != 1234.56 {
		t.Fatalf("AmountTotal = %v, want 1234.56", result.AmountTotal)
	}
	if result.DocumentDate == nil {
		t.Fatalf("expected document date for single-date text")
	}
	if got := result.DocumentDate.Format("2006-01-02"); got != "2024-01-15" {
		t.Fatalf("DocumentDate = %s, want 2024-01-15", got)
	}
	if len(result.Emails) != 1 || result.Emails[0] != "jean.dupont@example.fr" {
		t.Fatalf("Emails = %v", result.Emails)
	}
	if len(result.Phones) == 0 {
		t.Fatalf("expected a phone match")
	}
}

func TestExtractDateRange(t *testing.T) {
	text := "Période du 01/02/2024 au 28/02/2024, signé le 15/03/2024."
	result := Extract(text)

	if result.DocumentDate != nil {
		t.Fatalf("multiple distinct dates must not elect a document date")
	}
	if result.EarliestDate == nil || result.LatestDate == nil {
		t.Fatalf("expected date range")
	}
	if got := result.EarliestDate.Format("2006-01-02"); got != "2024-02-01" {
		t.Fatalf("EarliestDate = %s", got)
	}
	if got := result.LatestDate.Format("2006-01-02"); got != "2024-03-15" {
		t.Fatalf("LatestDate = %s", got)
	}
}

func TestExtractFrenchNamedMonth(t *testing.T) {
	result := Extract("Fait à Paris le 3 février 2024.")
	if result.DocumentDate == nil {
		t.Fatalf("expected named-month date parsed")
	}
	want := time.Date(2024, time.February, 3, 0, 0, 0, 0, result.DocumentDate.Location())
	if !result.DocumentDate.Equal(want) {
		t.Fatalf("DocumentDate = %v, want %v", result.DocumentDate, want)
	}
}

func TestExtractAmountAggregates(t *testing.T) {
	text := "Acompte: 500,00 € puis solde de 1 500,00 € (total 2 000,00 €)."
	result := Extract(text)

	if result.AmountCount != 3 {
		t.Fatalf("AmountCount = %d, want 3", result.AmountCount)
	}
	if result.AmountMin != 500 || result.AmountMax != 2000 {
		t.Fatalf("min/max = %v/%v, want 500/2000", result.AmountMin, result.AmountMax)
	}
	if result.AmountTotal != 4000 {
		t.Fatalf("AmountTotal = %v, want 4000", result.AmountTotal)
	}
}

func TestParseAmountSeparators(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1 234,56", 1234.56},
		{"1.234,56", 1234.56},
		{"1,234.56", 1234.56},
		{"1234.56", 1234.56},
		{"1234", 1234},
		{"1.234", 1234},
		{"12,5", 125},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if !ok {
			t.Errorf("ParseAmount(%q) failed", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExtractReferencesDeduplicate(t *testing.T) {
	text := "Contrat N° CTR-55/2024, rappel contrat CTR-55/2024, avenant contrat CTR-56/2024."
	result := Extract(text)

	refs := result.References["contract_number"]
	if len(refs) != 2 {
		t.Fatalf("contract_number = %v, want 2 distinct refs", refs)
	}
	if refs[0] != "CTR-55/2024" {
		t.Fatalf("first match must stay canonical, got %v", refs)
	}
}

func TestExtractEmptyText(t *testing.T) {
	result := Extract("")
	if result.AmountCount != 0 || result.EarliestDate != nil || len(result.Emails) != 0 || len(result.References) != 0 {
		t.Fatalf("empty input must yield empty result, got %+v", result)
	}
}

func TestStats(t *testing.T) {
	stats := Stats("premier paragraphe\nsur deux lignes\n\nsecond paragraphe")
	if stats.Lines != 4 {
		t.Errorf("Lines = %d, want 4", stats.Lines)
	}
	if stats.Paragraphs != 2 {
		t.Errorf("Paragraphs = %d, want 2", stats.Paragraphs)
	}
	if stats.Characters == 0 {
		t.Errorf("Characters must count runes")
	}
}
