// Package extract scans normalized text for dates, monetary amounts,
// reference codes and contact info. All functions are pure and deterministic
// for a given input; absence of matches is valid output, never an error.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/kirillkom/docstream/internal/core/domain"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),
	regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{2,4}`),
	regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(?:janvier|février|mars|avril|mai|juin|juillet|août|septembre|octobre|novembre|décembre)\s+\d{4}`),
	regexp.MustCompile(`(?i)\d{1,2}\s+(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}`),
}

// frenchMonths maps French month names onto English ones so the best-effort
// parser can handle named-month French dates.
var frenchMonths = map[string]string{
	"janvier": "january", "février": "february", "mars": "march",
	"avril": "april", "mai": "may", "juin": "june",
	"juillet": "july", "août": "august", "septembre": "september",
	"octobre": "october", "novembre": "november", "décembre": "december",
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:€|EUR)\s*(\d+(?:[\s.,]\d{3})*(?:[.,]\d{2})?)`),
	regexp.MustCompile(`(\d+(?:[\s.,]\d{3})*(?:[.,]\d{2})?)\s*(?:€|EUR)`),
	regexp.MustCompile(`(?i)(\d+(?:[\s.,]\d{3})*(?:[.,]\d{2})?)\s*(?:euros?|dollars?)`),
}

var referencePatterns = []struct {
	key     string
	pattern *regexp.Regexp
}{
	{"invoice_number", regexp.MustCompile(`(?i)(?:facture|invoice)\s*(?:n°|#|:)?\s*([A-Z0-9\-/]+)`)},
	{"contract_number", regexp.MustCompile(`(?i)(?:contrat|contract)\s*(?:n°|#|:)?\s*([A-Z0-9\-/]+)`)},
	{"order_number", regexp.MustCompile(`(?i)(?:commande|order)\s*(?:n°|#|:)?\s*([A-Z0-9\-/]+)`)},
	{"reference", regexp.MustCompile(`(?i)(?:réf(?:érence)?|ref(?:erence)?)\s*(?::|n°)?\s*([A-Z0-9\-/]+)`)},
	{"project_code", regexp.MustCompile(`(?i)(?:projet|project)\s*(?::|n°)?\s*([A-Z0-9\-/]+)`)},
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:\+33|0)\s?[1-9](?:\s?\d{2}){4}`),
	regexp.MustCompile(`\+\d{1,3}\s?\d{4,14}`),
	regexp.MustCompile(`\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`),
}

// Extract runs all entity scanners over one text input.
func Extract(text string) domain.ExtractionResult {
	result := domain.ExtractionResult{
		References: extractReferences(text),
		Emails:     extractEmails(text),
		Phones:     extractPhones(text),
	}
	fillDates(&result, text)
	fillAmounts(&result, text)
	return result
}

func fillDates(result *domain.ExtractionResult, text string) {
	var found []time.Time
	for _, pattern := range datePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			parsed, ok := parseDate(match)
			if !ok {
				continue
			}
			found = append(found, parsed)
		}
	}
	if len(found) == 0 {
		return
	}

	earliest, latest := found[0], found[0]
	distinct := map[time.Time]struct{}{}
	for _, d := range found {
		distinct[d] = struct{}{}
		if d.Before(earliest) {
			earliest = d
		}
		if d.After(latest) {
			latest = d
		}
	}

	result.EarliestDate = &earliest
	result.LatestDate = &latest
	if len(distinct) == 1 {
		result.DocumentDate = &earliest
	}
}

// parseDate normalizes a regex candidate and parses it best effort.
// Unparseable candidates are discarded silently.
func parseDate(candidate string) (time.Time, bool) {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	for fr, en := range frenchMonths {
		normalized = strings.ReplaceAll(normalized, fr, en)
	}
	// Day-first: 01/02/2024 is the 1st of February in this corpus.
	parsed, err := dateparse.ParseAny(normalized, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, false
	}
	return parsed.Truncate(24 * time.Hour), true
}

func fillAmounts(result *domain.ExtractionResult, text string) {
	var amounts []float64
	for _, pattern := range amountPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			amount, ok := parseAmount(match[1])
			if !ok || amount <= 0 {
				continue
			}
			amounts = append(amounts, amount)
		}
	}
	if len(amounts) == 0 {
		return
	}

	result.AmountCount = len(amounts)
	result.AmountMin = amounts[0]
	result.AmountMax = amounts[0]
	for _, a := range amounts {
		result.AmountTotal += a
		if a < result.AmountMin {
			result.AmountMin = a
		}
		if a > result.AmountMax {
			result.AmountMax = a
		}
	}
}

// ParseAmount normalizes thousands/decimal separators in a raw numeric
// candidate ("1 234,56", "1,234.56", "1.234,56") and parses it.
func ParseAmount(raw string) (float64, bool) {
	return parseAmount(raw)
}

func parseAmount(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		if r == ' ' || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// US: 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if len(s)-lastComma-1 == 2 && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if len(s)-lastDot-1 == 3 {
			// 1.234 is a thousands group, not cents
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

func extractReferences(text string) map[string][]string {
	refs := make(map[string][]string)
	for _, rp := range referencePatterns {
		seen := map[string]struct{}{}
		var matches []string
		for _, match := range rp.pattern.FindAllStringSubmatch(text, -1) {
			value := match[1]
			if _, dup := seen[value]; dup {
				continue
			}
			seen[value] = struct{}{}
			matches = append(matches, value)
		}
		if len(matches) > 0 {
			refs[rp.key] = matches
		}
	}
	return refs
}

func extractEmails(text string) []string {
	seen := map[string]struct{}{}
	var emails []string
	for _, match := range emailPattern.FindAllString(text, -1) {
		if _, dup := seen[match]; dup {
			continue
		}
		seen[match] = struct{}{}
		emails = append(emails, match)
	}
	return emails
}

func extractPhones(text string) []string {
	seen := map[string]struct{}{}
	var phones []string
	for _, pattern := range phonePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			phones = append(phones, match)
		}
	}
	sort.Strings(phones)
	return phones
}

// ContentStats are basic text statistics stored as document properties.
type ContentStats struct {
	Characters int
	Lines      int
	Paragraphs int
}

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

func Stats(text string) ContentStats {
	if text == "" {
		return ContentStats{}
	}
	return ContentStats{
		Characters: len([]rune(text)),
		Lines:      len(strings.Split(text, "\n")),
		Paragraphs: len(paragraphSplit.Split(text, -1)),
	}
}
