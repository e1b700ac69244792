package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// Scored is everything known about one candidate once the per-candidate
// scorers have run. Factors read it and never modify it.
type Scored struct {
	Profile *model.NonprofitProfile
	Quality model.DataQualityReport
	Mission model.MissionBreakdown
	ROI     model.ROIBreakdown
}

// FactorScore is a factor's value in [0,1] with a one-line annotation for
// the rationale.
type FactorScore struct {
	Value        float64
	Detail       string
	Degradations []model.Degradation
}

// Factor is a named, pure scoring function over a scored candidate.
type Factor struct {
	Name  string
	Score func(*Scored) FactorScore
}

// DefaultFactors returns the built-in factor registry in composite order.
func DefaultFactors() []Factor {
	return []Factor{
		{Name: model.FactorMission, Score: missionFactor},
		{Name: model.FactorROI, Score: roiFactor},
		{Name: model.FactorFinancialStability, Score: financialStability},
		{Name: model.FactorOrganizationalCapacity, Score: organizationalCapacity},
		{Name: model.FactorDataQuality, Score: dataQuality},
	}
}

func missionFactor(s *Scored) FactorScore {
	m := s.Mission
	var parts []string
	if len(m.MatchedKeywords) > 0 {
		parts = append(parts, "keywords: "+strings.Join(m.MatchedKeywords, ", "))
	}
	if len(m.MatchedCategories) > 0 {
		cats := make([]string, len(m.MatchedCategories))
		for i, c := range m.MatchedCategories {
			cats[i] = string(c)
		}
		parts = append(parts, "categories: "+strings.Join(cats, ", "))
	}
	detail := "no keyword or category matches"
	if len(parts) > 0 {
		detail = strings.Join(parts, "; ")
	}
	return FactorScore{Value: m.Alignment, Detail: detail}
}

func roiFactor(s *Scored) FactorScore {
	r := s.ROI
	return FactorScore{
		Value: r.Score,
		Detail: fmt.Sprintf("estimated value $%s/yr against $%s investment",
			formatMoney(int64(math.Round(r.EstimatedValue))), formatMoney(int64(math.Round(r.Investment)))),
	}
}

// Financial stability components.
const (
	revenueCredit  = 0.3
	coverageCredit = 0.3
	ratioCredit    = 0.4
)

func financialStability(s *Scored) FactorScore {
	f := s.Profile.Financials
	var out FactorScore
	missing := func(detail string) {
		out.Degradations = append(out.Degradations, model.Degradation{
			Factor: model.FactorFinancialStability,
			Reason: model.ReasonMissingInput,
			Detail: detail,
		})
	}

	switch {
	case f.Revenue == nil:
		out.Value += revenueCredit / 2
		missing("revenue not reported")
	case *f.Revenue > 0:
		out.Value += revenueCredit
	}

	switch {
	case f.Assets == nil || f.Liabilities == nil:
		out.Value += coverageCredit / 2
		missing("assets or liabilities not reported")
	case *f.Liabilities == 0:
		if *f.Assets > 0 {
			out.Value += coverageCredit
		}
	default:
		coverage := *f.Assets / *f.Liabilities
		switch {
		case coverage > 2:
			out.Value += coverageCredit
		case coverage > 1:
			out.Value += 0.2
		}
	}

	if f.ProgramExpenseRatio == nil {
		out.Value += ratioCredit / 2
		missing("program expense ratio not reported")
		out.Detail = "program ratio not reported"
	} else {
		out.Value += *f.ProgramExpenseRatio * ratioCredit
		out.Detail = fmt.Sprintf("program ratio %.0f%%", *f.ProgramExpenseRatio*100)
	}
	if f.Revenue != nil {
		out.Detail += fmt.Sprintf(", revenue $%s", formatMoney(int64(math.Round(*f.Revenue))))
	}

	out.Value = clamp01(out.Value)
	return out
}

// Organizational capacity components.
const (
	capacityBase    = 0.3
	sizeCredit      = 0.2
	efficiencyCred  = 0.2
	growthCredit    = 0.1
	workforceCredit = 0.1
	tenureCredit    = 0.1
)

func organizationalCapacity(s *Scored) FactorScore {
	p := s.Profile
	out := FactorScore{Value: capacityBase}
	var notes []string
	missing := func(detail string, credit float64) {
		out.Value += credit / 2
		out.Degradations = append(out.Degradations, model.Degradation{
			Factor: model.FactorOrganizationalCapacity,
			Reason: model.ReasonMissingInput,
			Detail: detail,
		})
	}

	if rev := p.Financials.Revenue; rev == nil {
		missing("revenue not reported", sizeCredit)
	} else {
		switch {
		case *rev > 5_000_000:
			out.Value += sizeCredit
		case *rev > 1_000_000:
			out.Value += 0.15
		case *rev > 100_000:
			out.Value += 0.1
		}
	}

	if ratio := p.Financials.ProgramExpenseRatio; ratio == nil {
		missing("program expense ratio not reported", efficiencyCred)
	} else {
		switch {
		case *ratio > 0.8:
			out.Value += efficiencyCred
		case *ratio > 0.7:
			out.Value += 0.1
		}
	}

	if growing, ok := revenueGrowing(p.Financials.RevenueHistory); !ok {
		missing("fewer than 3 years of revenue history", growthCredit)
	} else if growing {
		out.Value += growthCredit
		notes = append(notes, "revenue growing")
	}

	if p.Capacity.StaffCount == nil && p.Capacity.VolunteerCount == nil {
		missing("staff and volunteer counts not reported", workforceCredit)
	} else {
		var workforce int
		if p.Capacity.StaffCount != nil {
			workforce += *p.Capacity.StaffCount
			notes = append(notes, fmt.Sprintf("%d staff", *p.Capacity.StaffCount))
		}
		if p.Capacity.VolunteerCount != nil {
			workforce += *p.Capacity.VolunteerCount
			notes = append(notes, fmt.Sprintf("%d volunteers", *p.Capacity.VolunteerCount))
		}
		switch {
		case workforce >= 500:
			out.Value += workforceCredit
		case workforce >= 100:
			out.Value += 0.07
		case workforce >= 10:
			out.Value += 0.04
		}
	}

	if years := p.Capacity.YearsActive; years == nil {
		missing("years active not reported", tenureCredit)
	} else {
		switch {
		case *years >= 10:
			out.Value += tenureCredit
		case *years >= 5:
			out.Value += 0.05
		}
		notes = append(notes, fmt.Sprintf("%d years active", *years))
	}

	out.Detail = "limited capacity facts"
	if len(notes) > 0 {
		out.Detail = strings.Join(notes, ", ")
	}
	out.Value = clamp01(out.Value)
	return out
}

// revenueGrowing reports whether the three most recent fiscal years are
// non-decreasing. ok is false when fewer than three years are known.
func revenueGrowing(history []model.FiscalYear) (growing, ok bool) {
	if len(history) < 3 {
		return false, false
	}
	years := make([]model.FiscalYear, len(history))
	copy(years, history)
	sort.Slice(years, func(i, j int) bool { return years[i].Year < years[j].Year })
	recent := years[len(years)-3:]
	for i := 1; i < len(recent); i++ {
		if recent[i].Revenue < recent[i-1].Revenue {
			return false, true
		}
	}
	return true, true
}

func dataQuality(s *Scored) FactorScore {
	q := s.Quality
	expected := len(model.ExpectedFields)
	return FactorScore{
		Value:  clamp01(q.Completeness),
		Detail: fmt.Sprintf("%d of %d expected fields present", expected-len(q.Missing), expected),
	}
}

// formatMoney renders a whole-dollar amount with thousands separators.
func formatMoney(amount int64) string {
	if amount == 0 {
		return "0"
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return sign + string(result)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
