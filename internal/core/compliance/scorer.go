package compliance

import (
	"time"

	"github.com/kirillkom/docstream/internal/core/domain"
)

type Scorer struct {
	rules RuleSet
	now   func() time.Time
}

func NewScorer(rules RuleSet) *Scorer {
	return &Scorer{rules: rules, now: time.Now}
}

// Score runs every category's rule checks over the text and aggregates the
// result in two levels: violations roll up to a per-category score, category
// scores roll up to the overall mean.
func (s *Scorer) Score(text string) domain.ComplianceResult {
	result := domain.ComplianceResult{
		Checks:    make(map[string]domain.CategoryResult, len(s.rules.Categories)),
		CheckedAt: s.now().UTC(),
	}

	totalScore := 0
	for _, category := range s.rules.Categories {
		categoryResult := s.scoreCategory(category, text)
		result.Checks[category.Name] = categoryResult
		result.Violations = append(result.Violations, categoryResult.Violations...)
		totalScore += categoryResult.Score
	}

	if len(s.rules.Categories) > 0 {
		result.Score = totalScore / len(s.rules.Categories)
	}
	result.Compliant = len(result.Violations) == 0
	result.Recommendations = recommendations(result.Violations)
	return result
}

func (s *Scorer) scoreCategory(category Category, text string) domain.CategoryResult {
	var violations []domain.Violation
	for _, check := range category.Checks {
		for _, violation := range check(text) {
			violation.Category = category.Name
			violations = append(violations, violation)
		}
	}

	score := 100
	for _, violation := range violations {
		score -= category.Penalties[violation.Severity]
	}
	if score < 0 {
		score = 0
	}

	return domain.CategoryResult{
		Score:      score,
		Violations: violations,
		Passed:     len(violations) == 0,
	}
}

// recommendations derives deduplicated remediation actions from the
// violation list, preserving first-seen order.
func recommendations(violations []domain.Violation) []string {
	seen := map[string]struct{}{}
	var actions []string
	for _, violation := range violations {
		if violation.Remediation == "" {
			continue
		}
		if _, dup := seen[violation.Remediation]; dup {
			continue
		}
		seen[violation.Remediation] = struct{}{}
		actions = append(actions, violation.Remediation)
	}
	return actions
}
