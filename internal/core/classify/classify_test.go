package classify

import (
	"reflect"
	"testing"
)

func TestClassifyRequiresTwoKeywordHits(t *testing.T) {
	c := New(DefaultRules())

	if got := c.Classify("ceci mentionne une facture").DocumentType; got != "" {
		t.Fatalf("single keyword hit must not classify, got %q", got)
	}
	if got := c.Classify("facture avec montant à payer").DocumentType; got != "facture" {
		t.Fatalf("two keyword hits must classify, got %q", got)
	}
}

func TestClassifyFirstDeclaredTypeWins(t *testing.T) {
	c := New(DefaultRules())

	// Hits both the facture and contrat dictionaries; facture is declared
	// first and must win exclusively.
	text := "facture relative au contrat: montant dû selon la convention signée"
	result := c.Classify(text)
	if result.DocumentType != "facture" {
		t.Fatalf("DocumentType = %q, want facture", result.DocumentType)
	}
}

func TestClassifyTopicsAreCumulative(t *testing.T) {
	c := New(DefaultRules())

	text := "bilan budget annuel, congé et salaire des salariés"
	result := c.Classify(text)
	want := []string{"finance", "rh"}
	if !reflect.DeepEqual(result.Topics, want) {
		t.Fatalf("Topics = %v, want %v", result.Topics, want)
	}
}

func TestClassifyStatusFlagsSingleHit(t *testing.T) {
	c := New(DefaultRules())

	result := c.Classify("réponse urgente attendue, document confidentiel")
	if !result.Urgent || !result.Confidential {
		t.Fatalf("expected urgent and confidential flags, got %+v", result)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	c := New(DefaultRules())

	if got := c.Classify("FACTURE: MONTANT TTC").DocumentType; got != "facture" {
		t.Fatalf("matching must be case-insensitive, got %q", got)
	}
}

func TestClassificationTags(t *testing.T) {
	c := New(DefaultRules())

	tags := c.Classify("facture urgente, montant confidentiel, budget et bilan comptabilité").Tags()
	want := []string{"facture", "finance", "urgent", "confidentiel"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("Tags = %v, want %v", tags, want)
	}
}

func TestTemplateName(t *testing.T) {
	cases := map[string]string{
		"facture":      "Invoice Template",
		"contrat":      "Contract Template",
		"rapport":      "Report Template",
		"devis":        "",
		"inconnu":      "",
		"":             "",
		"courrier":     "",
		"bon_commande": "",
	}
	for in, want := range cases {
		if got := TemplateName(in); got != want {
			t.Errorf("TemplateName(%q) = %q, want %q", in, got, want)
		}
	}
}
