package ranking

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/nonprofit-ranker/internal/mission"
	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/roi"
)

// Explain renders a multi-section plain-text explanation of a candidate's
// position.
func Explain(c model.RankedCandidate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s) - Rank #%d\n", c.Name, c.EIN, c.Rank)
	fmt.Fprintf(&b, "Overall score: %.1f%%\n\n", c.Composite*100)

	m := c.Mission
	b.WriteString("Mission alignment\n")
	fmt.Fprintf(&b, "  %s alignment (%.1f%%)\n", cases.Title(language.English).String(mission.Label(m.Alignment)), m.Alignment*100)
	fmt.Fprintf(&b, "  keyword %.2f, category %.2f, semantic %.2f\n", m.KeywordScore, m.CategoryScore, m.SemanticScore)
	if len(m.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, "  matched keywords: %s\n", strings.Join(m.MatchedKeywords, ", "))
	}
	if len(m.MatchedCategories) > 0 {
		cats := make([]string, len(m.MatchedCategories))
		for i, cat := range m.MatchedCategories {
			cats[i] = string(cat)
		}
		fmt.Fprintf(&b, "  matched categories: %s\n", strings.Join(cats, ", "))
	}
	b.WriteString("\n")

	r := c.ROI
	b.WriteString("Partnership ROI\n")
	fmt.Fprintf(&b, "  %s\n", roi.Summary(r))
	fmt.Fprintf(&b, "  estimated value $%s, investment $%s\n",
		formatMoney(int64(math.Round(r.EstimatedValue))), formatMoney(int64(math.Round(r.Investment))))
	if r.NewBeneficiaries > 0 {
		fmt.Fprintf(&b, "  %s new beneficiaries\n", formatMoney(int64(r.NewBeneficiaries)))
	}
	b.WriteString("\n")

	stability := c.SubScore(model.FactorFinancialStability).Score
	b.WriteString("Financial stability\n")
	fmt.Fprintf(&b, "  %s financial stability (%.1f%%)\n", tier(stability, "Strong", "Moderate", "Limited"), stability*100)
	b.WriteString("\n")

	capacity := c.SubScore(model.FactorOrganizationalCapacity).Score
	b.WriteString("Organizational capacity\n")
	fmt.Fprintf(&b, "  %s organizational capacity (%.1f%%)\n", tier(capacity, "Strong", "Moderate", "Developing"), capacity*100)
	b.WriteString("\n")

	if len(c.Rationale) > 0 {
		b.WriteString("Top factors\n")
		for _, reason := range c.Rationale {
			fmt.Fprintf(&b, "  %s +%.3f: %s\n", reason.Factor, reason.Contribution, reason.Detail)
		}
		b.WriteString("\n")
	}

	if c.Quality.Completeness < 0.5 {
		b.WriteString("Note: limited data available may affect ranking accuracy\n")
	}
	if c.Degraded {
		fmt.Fprintf(&b, "Degraded inputs: %d\n", len(c.Degradations))
	}
	return strings.TrimRight(b.String(), "\n")
}

func tier(v float64, high, mid, low string) string {
	switch {
	case v > 0.7:
		return high
	case v > 0.5:
		return mid
	default:
		return low
	}
}
