// Package normalize validates raw nonprofit records and records which facts
// were supplied.
package normalize

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	einDigitsRe  = regexp.MustCompile(`^\d{9}$`)
)

// CanonicalEIN returns the EIN in NN-NNNNNNN form. Hyphens and whitespace
// in the input are ignored; anything other than nine digits is rejected.
func CanonicalEIN(ein string) (string, error) {
	digits := strings.NewReplacer("-", "", " ", "", "\t", "").Replace(strings.TrimSpace(ein))
	if digits == "" {
		return "", eris.Wrap(model.ErrInvalidProfile, "normalize: ein is required")
	}
	if !einDigitsRe.MatchString(digits) {
		return "", eris.Wrapf(model.ErrInvalidProfile, "normalize: malformed ein %q", ein)
	}
	return digits[:2] + "-" + digits[2:], nil
}

// Normalize validates raw and returns the normalized profile together with
// its data-quality report. Missing facts never cause an error; only an
// absent or malformed EIN does.
func Normalize(raw model.RawProfile) (model.NonprofitProfile, model.DataQualityReport, error) {
	ein, err := CanonicalEIN(raw.EIN)
	if err != nil {
		return model.NonprofitProfile{}, model.DataQualityReport{}, err
	}

	p := model.NonprofitProfile{
		EIN:     ein,
		Name:    cleanText(raw.Name),
		Mission: cleanText(raw.Mission),
		Website: strings.TrimSpace(raw.Website),
		Status:  normalizeStatus(raw.Status),
		Present: model.FieldSet{},
	}
	if p.Name == "" {
		p.Name = ein
	}

	p.Programs = cleanList(raw.Programs)
	p.Categories = normalizeCategories(raw.Categories)
	p.Financials = normalizeFinancials(raw.Financials)
	p.Capacity = normalizeCapacity(raw.Capacity)
	p.Social = model.Social{
		Followers:      nonNegativeInt(raw.Social.Followers),
		EngagementRate: ratio(raw.Social.EngagementRate),
		Platforms:      cleanList(raw.Social.Platforms),
	}
	p.Location = model.Location{
		City:         cleanText(raw.Location.City),
		State:        strings.ToUpper(strings.TrimSpace(raw.Location.State)),
		Zip:          strings.TrimSpace(raw.Location.Zip),
		ServiceAreas: normalizeAreas(raw.Location.ServiceAreas),
	}

	recordPresence(&p)
	return p, qualityReport(p.Present), nil
}

func recordPresence(p *model.NonprofitProfile) {
	set := p.Present
	mark := func(f model.Field, ok bool) {
		if ok {
			set[f] = true
		}
	}
	mark(model.FieldMission, p.Mission != "")
	mark(model.FieldCategories, len(p.Categories) > 0)
	mark(model.FieldPrograms, len(p.Programs) > 0)

	fin := p.Financials
	mark(model.FieldRevenue, fin.Revenue != nil)
	mark(model.FieldExpenses, fin.Expenses != nil)
	mark(model.FieldAssets, fin.Assets != nil)
	mark(model.FieldLiabilities, fin.Liabilities != nil)
	mark(model.FieldProgramExpenses, fin.ProgramExpenses != nil)
	mark(model.FieldAdminExpenses, fin.AdministrativeExpenses != nil)
	mark(model.FieldFundraisingExpenses, fin.FundraisingExpenses != nil)
	mark(model.FieldProgramExpenseRatio, fin.ProgramExpenseRatio != nil)
	mark(model.FieldRevenueHistory, len(fin.RevenueHistory) > 0)

	capa := p.Capacity
	mark(model.FieldStaffCount, capa.StaffCount != nil)
	mark(model.FieldVolunteerCount, capa.VolunteerCount != nil)
	mark(model.FieldYearsActive, capa.YearsActive != nil)
	mark(model.FieldFacilitySqFt, capa.FacilitySqFt != nil)
	mark(model.FieldBeneficiaries, capa.BeneficiariesServed != nil)

	mark(model.FieldFollowers, p.Social.Followers != nil)
	mark(model.FieldEngagementRate, p.Social.EngagementRate != nil)
	mark(model.FieldServiceAreas, len(p.Location.ServiceAreas) > 0)
}

func qualityReport(present model.FieldSet) model.DataQualityReport {
	r := model.DataQualityReport{
		Present: present.Sorted(),
	}
	var have int
	for _, f := range model.ExpectedFields {
		if present.Has(f) {
			have++
			continue
		}
		r.Missing = append(r.Missing, f)
	}
	if n := len(model.ExpectedFields); n > 0 {
		r.Completeness = float64(have) / float64(n)
	}
	return r
}

func normalizeFinancials(in model.Financials) model.Financials {
	out := model.Financials{
		Revenue:                nonNegative(in.Revenue),
		Expenses:               nonNegative(in.Expenses),
		Assets:                 nonNegative(in.Assets),
		Liabilities:            nonNegative(in.Liabilities),
		ProgramExpenses:        nonNegative(in.ProgramExpenses),
		AdministrativeExpenses: nonNegative(in.AdministrativeExpenses),
		FundraisingExpenses:    nonNegative(in.FundraisingExpenses),
		ProgramExpenseRatio:    ratio(in.ProgramExpenseRatio),
	}

	// Derived only from reported facts; never defaulted.
	if out.ProgramExpenseRatio == nil && out.ProgramExpenses != nil && out.Expenses != nil && *out.Expenses > 0 {
		r := math.Min(*out.ProgramExpenses / *out.Expenses, 1)
		out.ProgramExpenseRatio = &r
	}

	// One entry per year; a later entry for the same year replaces the earlier.
	byYear := make(map[int]int, len(in.RevenueHistory))
	for _, fy := range in.RevenueHistory {
		if fy.Year <= 0 || !finite(fy.Revenue) || fy.Revenue < 0 {
			continue
		}
		if i, ok := byYear[fy.Year]; ok {
			out.RevenueHistory[i] = fy
			continue
		}
		byYear[fy.Year] = len(out.RevenueHistory)
		out.RevenueHistory = append(out.RevenueHistory, fy)
	}
	sort.SliceStable(out.RevenueHistory, func(i, j int) bool {
		return out.RevenueHistory[i].Year < out.RevenueHistory[j].Year
	})
	return out
}

func normalizeCapacity(in model.Capacity) model.Capacity {
	return model.Capacity{
		StaffCount:          nonNegativeInt(in.StaffCount),
		VolunteerCount:      nonNegativeInt(in.VolunteerCount),
		YearsActive:         nonNegativeInt(in.YearsActive),
		FacilitySqFt:        nonNegative(in.FacilitySqFt),
		BeneficiariesServed: nonNegativeInt(in.BeneficiariesServed),
	}
}

func normalizeStatus(s string) model.Status {
	switch model.Status(strings.ToLower(strings.TrimSpace(s))) {
	case model.StatusActive:
		return model.StatusActive
	case model.StatusInactive:
		return model.StatusInactive
	case model.StatusSuspended:
		return model.StatusSuspended
	default:
		return model.StatusUnknown
	}
}

// normalizeCategories lowercases tags, joins words with underscores,
// de-duplicates and sorts.
func normalizeCategories(tags []string) []model.ServiceCategory {
	seen := make(map[model.ServiceCategory]bool, len(tags))
	var out []model.ServiceCategory
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
		if t == "" {
			continue
		}
		c := model.ServiceCategory(t)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func normalizeAreas(areas []string) []string {
	seen := make(map[string]bool, len(areas))
	var out []string
	for _, a := range areas {
		a = strings.ToUpper(cleanText(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func cleanText(s string) string {
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = cleanText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// nonNegative copies v, dropping values that cannot be a reported amount.
func nonNegative(v *float64) *float64 {
	if v == nil || !finite(*v) || *v < 0 {
		return nil
	}
	c := *v
	return &c
}

func nonNegativeInt(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	c := *v
	return &c
}

// ratio accepts a fraction in [0,1] or a percentage in (1,100].
func ratio(v *float64) *float64 {
	c := nonNegative(v)
	if c == nil {
		return nil
	}
	switch {
	case *c <= 1:
	case *c <= 100:
		*c /= 100
	default:
		return nil
	}
	return c
}
