// Package compliance applies regulatory rule sets to extracted document
// text and produces a weighted score with violations and remediation
// recommendations.
package compliance

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
	"github.com/kirillkom/docstream/internal/core/extract"
)

// RuleCheck inspects text and returns zero or more violations. Absence of
// violations is the passing outcome.
type RuleCheck func(text string) []domain.Violation

// Category groups rule checks with their severity penalties. Penalties are
// category-specific and historical; they are preserved as-is.
type Category struct {
	Name      string
	Checks    []RuleCheck
	Penalties map[domain.Severity]int
}

type RuleSet struct {
	Categories []Category
}

const (
	CategoryGDPR          = "gdpr"
	CategoryFinancial     = "financial"
	CategoryEnvironmental = "environmental"
	CategoryContractual   = "contractual"
	CategoryRealEstate    = "real_estate"
)

// Thresholds for financial transaction checks, in euros.
const (
	cashLimit        = 1000.0
	declarationLimit = 10000.0
)

var standardPenalties = map[domain.Severity]int{
	domain.SeverityHigh:   20,
	domain.SeverityMedium: 10,
	domain.SeverityLow:    5,
}

var financialPenalties = map[domain.Severity]int{
	domain.SeverityHigh:   30,
	domain.SeverityMedium: 15,
	domain.SeverityLow:    5,
}

// DefaultRuleSet returns the five fixed compliance categories. Category
// order matters only for reporting; every category always runs.
func DefaultRuleSet() RuleSet {
	return RuleSet{Categories: []Category{
		{
			Name:      CategoryGDPR,
			Checks:    []RuleCheck{checkPersonalData, checkConsentMention, checkRetentionPolicy},
			Penalties: standardPenalties,
		},
		{
			Name:      CategoryFinancial,
			Checks:    []RuleCheck{checkKYCRequirements, checkTransactionLimits},
			Penalties: financialPenalties,
		},
		{
			Name:      CategoryEnvironmental,
			Checks:    []RuleCheck{checkEnvironmentalImpact, checkWasteManagement},
			Penalties: standardPenalties,
		},
		{
			Name:      CategoryContractual,
			Checks:    []RuleCheck{checkSignatures, checkMandatoryClauses},
			Penalties: standardPenalties,
		},
		{
			Name:      CategoryRealEstate,
			Checks:    []RuleCheck{checkPermitValidity, checkSafetyRequirements},
			Penalties: standardPenalties,
		},
	}}
}

// Personal-data detection is deliberately broader and stricter than the
// generic entity extractor: national-ID-shaped numbers, card numbers, birth
// dates, street-address tokens, emails and phones all count.
var personalDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{13,15}\b`),
	regexp.MustCompile(`\b(?:\d{4}[\s\-]?){3}\d{4}\b`),
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	regexp.MustCompile(`\+?\d{10,15}`),
	regexp.MustCompile(`(?i)(?:né\(?e?\)?\s+le|date de naissance)\s*:?\s*\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}`),
	regexp.MustCompile(`(?i)\d+\s*,?\s+(?:rue|avenue|boulevard|chemin|allée|impasse)\s+[a-zà-ÿ]`),
}

func checkPersonalData(text string) []domain.Violation {
	occurrences := 0
	for _, pattern := range personalDataPatterns {
		occurrences += len(pattern.FindAllString(text, -1))
	}
	if occurrences == 0 {
		return nil
	}
	return []domain.Violation{{
		Type:        "personal_data_exposure",
		Description: "Détection de données personnelles non protégées",
		Severity:    domain.SeverityHigh,
		Details:     fmt.Sprintf("Données personnelles non protégées détectées: %d occurrences", occurrences),
		Remediation: "Anonymiser ou chiffrer les données personnelles",
	}}
}

func checkConsentMention(text string) []domain.Violation {
	keywords := []string{"consentement", "consent", "autorisation", "accord explicite", "rgpd", "gdpr"}
	if containsAny(text, keywords) {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_consent",
		Description: "Vérification de la mention de consentement",
		Severity:    domain.SeverityMedium,
		Details:     "Aucune mention de consentement RGPD trouvée",
		Remediation: "Ajouter une clause de consentement RGPD",
	}}
}

func checkRetentionPolicy(text string) []domain.Violation {
	keywords := []string{"conservation", "retention", "durée", "archivage", "suppression"}
	if containsAny(text, keywords) {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_retention_policy",
		Description: "Vérification de la durée de conservation",
		Severity:    domain.SeverityMedium,
		Details:     "Aucune politique de conservation des données spécifiée",
		Remediation: "Spécifier la durée de conservation des données",
	}}
}

func checkKYCRequirements(text string) []domain.Violation {
	var violations []domain.Violation
	kycElements := []struct {
		element  string
		keywords []string
	}{
		{"identity", []string{"identité", "identity", "nom", "name", "prénom", "firstname"}},
		{"address", []string{"adresse", "address", "domicile", "residence"}},
		{"financial_status", []string{"revenus", "income", "patrimoine", "assets", "situation financière"}},
	}
	for _, element := range kycElements {
		if containsAny(text, element.keywords) {
			continue
		}
		violations = append(violations, domain.Violation{
			Type:        "missing_kyc_element",
			Description: fmt.Sprintf("Élément KYC manquant: %s", element.element),
			Severity:    domain.SeverityHigh,
			Remediation: fmt.Sprintf("Ajouter les informations de %s", element.element),
		})
	}

	supportingDocs := []string{"pièce d'identité", "justificatif", "proof", "document"}
	if !containsAny(text, supportingDocs) {
		violations = append(violations, domain.Violation{
			Type:        "missing_supporting_documents",
			Description: "Aucun document justificatif mentionné",
			Severity:    domain.SeverityMedium,
			Remediation: "Joindre les pièces justificatives requises",
		})
	}
	return violations
}

var transactionAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[€$]\s*(\d{1,3}(?:[\s.,]\d{3})*(?:[.,]\d{2})?)`),
	regexp.MustCompile(`(?i)(\d{1,3}(?:[\s.,]\d{3})*(?:[.,]\d{2})?)\s*(?:€|euros?|EUR|dollars?|USD)`),
}

func checkTransactionLimits(text string) []domain.Violation {
	seen := map[float64]struct{}{}
	var amounts []float64
	for _, pattern := range transactionAmountPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			amount, ok := extract.ParseAmount(match[1])
			if !ok || amount <= 0 {
				continue
			}
			if _, dup := seen[amount]; dup {
				continue
			}
			seen[amount] = struct{}{}
			amounts = append(amounts, amount)
		}
	}

	isCash := containsAny(text, []string{"cash", "espèces"})

	var violations []domain.Violation
	for _, amount := range amounts {
		switch {
		case amount > declarationLimit:
			violations = append(violations, domain.Violation{
				Type:        "high_amount_transaction",
				Description: fmt.Sprintf("Montant élevé détecté: %.2f€ (seuil: %.0f€)", amount, declarationLimit),
				Severity:    domain.SeverityHigh,
				Remediation: "Vérifier les obligations déclaratives",
			})
			if isCash {
				violations = append(violations, domain.Violation{
					Type:        "large_cash_transaction",
					Description: fmt.Sprintf("Transaction en espèces importante: %.2f€", amount),
					Severity:    domain.SeverityHigh,
					Remediation: "Les paiements en espèces supérieurs à 10,000€ nécessitent une déclaration",
				})
			}
		case amount > cashLimit && isCash:
			violations = append(violations, domain.Violation{
				Type:        "cash_limit_exceeded",
				Description: fmt.Sprintf("Montant supérieur à la limite espèces: %.2f€", amount),
				Severity:    domain.SeverityMedium,
				Remediation: "Vérifier le mode de paiement",
			})
		}
	}
	return violations
}

func checkEnvironmentalImpact(text string) []domain.Violation {
	keywords := []string{"impact environnemental", "évaluation environnementale", "étude d'impact"}
	if containsAny(text, keywords) {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_environmental_assessment",
		Description: "Évaluation d'impact environnemental",
		Severity:    domain.SeverityMedium,
		Details:     "Aucune évaluation d'impact environnemental trouvée",
		Remediation: "Inclure une évaluation d'impact environnemental",
	}}
}

func checkWasteManagement(text string) []domain.Violation {
	keywords := []string{"déchets", "recyclage", "élimination", "traitement des déchets"}
	if containsAny(text, keywords) {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_waste_plan",
		Description: "Plan de gestion des déchets",
		Severity:    domain.SeverityLow,
		Details:     "Aucun plan de gestion des déchets spécifié",
		Remediation: "Ajouter un plan de gestion des déchets",
	}}
}

// checkSignatures flags missing signature mentions only for contract-shaped
// content; other documents pass.
func checkSignatures(text string) []domain.Violation {
	contractKeywords := []string{"contrat", "contract", "accord", "convention"}
	if !containsAny(text, contractKeywords) {
		return nil
	}
	signatureKeywords := []string{"signature", "signé", "paraphe"}
	if containsAny(text, signatureKeywords) {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_signature",
		Description: "Vérification des signatures",
		Severity:    domain.SeverityHigh,
		Details:     "Signatures requises non trouvées",
		Remediation: "Obtenir toutes les signatures requises",
	}}
}

func checkMandatoryClauses(text string) []domain.Violation {
	clauses := []string{"force majeure", "résiliation", "juridiction", "loi applicable"}
	var missing []string
	lower := strings.ToLower(text)
	for _, clause := range clauses {
		if !strings.Contains(lower, clause) {
			missing = append(missing, clause)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_contract_term",
		Description: "Vérification des clauses obligatoires",
		Severity:    domain.SeverityMedium,
		Details:     fmt.Sprintf("Clauses obligatoires manquantes: %s", strings.Join(missing, ", ")),
		Remediation: "Ajouter les clauses contractuelles manquantes",
	}}
}

var permitExpiryPattern = regexp.MustCompile(`(?i)valable jusqu'au\s+(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`)

func checkPermitValidity(text string) []domain.Violation {
	var expired []string
	now := time.Now()
	for _, match := range permitExpiryPattern.FindAllStringSubmatch(text, -1) {
		expiry, ok := parsePermitDate(match[1])
		if !ok {
			continue
		}
		if expiry.Before(now) {
			expired = append(expired, expiry.Format("2006-01-02"))
		}
	}
	if len(expired) == 0 {
		return nil
	}
	return []domain.Violation{{
		Type:        "expired_permit",
		Description: "Validité des permis de construire",
		Severity:    domain.SeverityHigh,
		Details:     fmt.Sprintf("Permis expiré(s) détecté(s): %s", strings.Join(expired, ", ")),
		Remediation: "Vérifier la validité et les dates des permis",
	}}
}

// parsePermitDate parses DD/MM/YYYY or DD-MM-YYYY, the forms permits use.
func parsePermitDate(s string) (time.Time, bool) {
	s = strings.ReplaceAll(s, "-", "/")
	for _, layout := range []string{"02/01/2006", "2/1/2006", "02/01/06", "2/1/06"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func checkSafetyRequirements(text string) []domain.Violation {
	keywords := []string{"sécurité", "prévention", "protection", "risque", "danger", "epi"}
	if containsAny(text, keywords) {
		return nil
	}
	return []domain.Violation{{
		Type:        "missing_safety_requirement",
		Description: "Exigences de sécurité",
		Severity:    domain.SeverityHigh,
		Details:     "Aucune mention des exigences de sécurité",
		Remediation: "Inclure les mesures de sécurité obligatoires",
	}}
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
