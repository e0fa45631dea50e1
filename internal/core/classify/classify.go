// Package classify infers document type, topics and status flags from text
// via keyword scoring. Dictionaries are immutable configuration passed to
// the classifier at construction.
package classify

import (
	"strings"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// TypeKeywords binds one document type to its keyword list. Order in the
// rule set is significant: the first type reaching the threshold wins.
type TypeKeywords struct {
	Type     string
	Keywords []string
}

type TopicKeywords struct {
	Topic    string
	Keywords []string
}

type Rules struct {
	// DocumentTypes is scanned in declaration order; first type with at
	// least TypeThreshold keyword hits is selected exclusively.
	DocumentTypes []TypeKeywords
	// Topics are cumulative: every topic reaching TypeThreshold is kept.
	Topics []TopicKeywords
	// Urgent/Confidential flags trigger on a single keyword hit.
	UrgentKeywords       []string
	ConfidentialKeywords []string
}

// TypeThreshold is the minimum keyword hit-count for a type or topic match.
const TypeThreshold = 2

// HighValueThreshold is the total amount above which the high_value tag
// applies.
const HighValueThreshold = 10000.0

// DefaultRules returns the standard French/English business dictionaries.
func DefaultRules() Rules {
	return Rules{
		DocumentTypes: []TypeKeywords{
			{"facture", []string{"facture", "invoice", "montant", "total", "ttc", "tva", "paiement", "échéance"}},
			{"contrat", []string{"contrat", "contract", "accord", "convention", "parties", "signataire", "signature"}},
			{"devis", []string{"devis", "estimation", "quote", "proposition", "prix", "coût"}},
			{"bon_commande", []string{"commande", "order", "achat", "purchase", "fournisseur"}},
			{"rapport", []string{"rapport", "report", "analyse", "étude", "conclusion", "recommandation"}},
			{"courrier", []string{"madame", "monsieur", "cordialement", "sincèrement", "lettre"}},
			{"cv", []string{"curriculum", "vitae", "expérience", "formation", "compétences", "diplôme"}},
			{"compte_rendu", []string{"compte", "rendu", "réunion", "meeting", "présents", "ordre", "jour"}},
			{"procédure", []string{"procédure", "procedure", "étape", "processus", "instruction"}},
			{"manuel", []string{"manuel", "guide", "utilisation", "mode", "emploi", "instructions"}},
		},
		Topics: []TopicKeywords{
			{"finance", []string{"budget", "comptabilité", "trésorerie", "bilan", "résultat", "fiscal", "impôt"}},
			{"juridique", []string{"légal", "juridique", "droit", "loi", "article", "code", "tribunal", "justice"}},
			{"rh", []string{"employé", "salarié", "congé", "salaire", "embauche", "licenciement", "formation"}},
			{"commercial", []string{"client", "vente", "achat", "produit", "service", "marketing", "prospect"}},
			{"technique", []string{"technique", "spécification", "développement", "système", "architecture"}},
			{"immobilier", []string{"immeuble", "appartement", "location", "vente", "bail", "locataire", "propriétaire"}},
		},
		UrgentKeywords:       []string{"urgent", "urgence", "immédiat", "prioritaire", "asap", "délai court", "importante"},
		ConfidentialKeywords: []string{"confidentiel", "secret", "privé", "restricted", "internal", "interne"},
	}
}

type Classifier struct {
	rules Rules
}

func New(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify scores the text against the configured dictionaries. Matching is
// case-insensitive substring containment, not word-boundary matching.
func (c *Classifier) Classify(text string) domain.ClassificationResult {
	content := strings.ToLower(text)

	result := domain.ClassificationResult{
		DocumentType: c.detectDocumentType(content),
		Topics:       c.detectTopics(content),
		Urgent:       containsAny(content, c.rules.UrgentKeywords),
		Confidential: containsAny(content, c.rules.ConfidentialKeywords),
	}
	return result
}

func (c *Classifier) detectDocumentType(content string) string {
	for _, tk := range c.rules.DocumentTypes {
		if hitCount(content, tk.Keywords) >= TypeThreshold {
			return tk.Type
		}
	}
	return ""
}

func (c *Classifier) detectTopics(content string) []string {
	var topics []string
	for _, tk := range c.rules.Topics {
		if hitCount(content, tk.Keywords) >= TypeThreshold {
			topics = append(topics, tk.Topic)
		}
	}
	return topics
}

func hitCount(content string, keywords []string) int {
	hits := 0
	for _, keyword := range keywords {
		if strings.Contains(content, keyword) {
			hits++
		}
	}
	return hits
}

func containsAny(content string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(content, keyword) {
			return true
		}
	}
	return false
}

// TemplateName maps an inferred document type to the organization template
// applied after tagging, or "" when no template applies. The mapping is
// fixed and historical.
func TemplateName(documentType string) string {
	switch documentType {
	case "facture":
		return "Invoice Template"
	case "contrat":
		return "Contract Template"
	case "rapport":
		return "Report Template"
	default:
		return ""
	}
}
