package profile

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// ListSeparator splits multi-valued cells such as programs and categories.
const ListSeparator = ";"

type setter func(p *model.RawProfile, v string) error

// columns maps a normalized header to the field it fills.
var columns = map[string]setter{
	"ein":      func(p *model.RawProfile, v string) error { p.EIN = v; return nil },
	"name":     func(p *model.RawProfile, v string) error { p.Name = v; return nil },
	"mission":  func(p *model.RawProfile, v string) error { p.Mission = v; return nil },
	"website":  func(p *model.RawProfile, v string) error { p.Website = v; return nil },
	"status":   func(p *model.RawProfile, v string) error { p.Status = v; return nil },
	"programs": func(p *model.RawProfile, v string) error { p.Programs = splitList(v); return nil },
	"categories": func(p *model.RawProfile, v string) error {
		p.Categories = splitList(v)
		return nil
	},

	"revenue":                 money(func(p *model.RawProfile) **float64 { return &p.Financials.Revenue }),
	"expenses":                money(func(p *model.RawProfile) **float64 { return &p.Financials.Expenses }),
	"assets":                  money(func(p *model.RawProfile) **float64 { return &p.Financials.Assets }),
	"liabilities":             money(func(p *model.RawProfile) **float64 { return &p.Financials.Liabilities }),
	"program_expenses":        money(func(p *model.RawProfile) **float64 { return &p.Financials.ProgramExpenses }),
	"administrative_expenses": money(func(p *model.RawProfile) **float64 { return &p.Financials.AdministrativeExpenses }),
	"fundraising_expenses":    money(func(p *model.RawProfile) **float64 { return &p.Financials.FundraisingExpenses }),
	"program_expense_ratio":   ratio(func(p *model.RawProfile) **float64 { return &p.Financials.ProgramExpenseRatio }),
	"revenue_history":         revenueHistory,

	"staff_count":          count(func(p *model.RawProfile) **int { return &p.Capacity.StaffCount }),
	"volunteer_count":      count(func(p *model.RawProfile) **int { return &p.Capacity.VolunteerCount }),
	"years_active":         count(func(p *model.RawProfile) **int { return &p.Capacity.YearsActive }),
	"facility_sqft":        money(func(p *model.RawProfile) **float64 { return &p.Capacity.FacilitySqFt }),
	"beneficiaries_served": count(func(p *model.RawProfile) **int { return &p.Capacity.BeneficiariesServed }),

	"followers":       count(func(p *model.RawProfile) **int { return &p.Social.Followers }),
	"engagement_rate": ratio(func(p *model.RawProfile) **float64 { return &p.Social.EngagementRate }),
	"platforms":       func(p *model.RawProfile, v string) error { p.Social.Platforms = splitList(v); return nil },

	"city":          func(p *model.RawProfile, v string) error { p.Location.City = v; return nil },
	"state":         func(p *model.RawProfile, v string) error { p.Location.State = v; return nil },
	"zip":           func(p *model.RawProfile, v string) error { p.Location.Zip = v; return nil },
	"service_areas": func(p *model.RawProfile, v string) error { p.Location.ServiceAreas = splitList(v); return nil },
}

// headerAliases maps common spreadsheet headings onto column names.
var headerAliases = map[string]string{
	"organization":      "name",
	"organization_name": "name",
	"mission_statement": "mission",
	"total_revenue":     "revenue",
	"total_expenses":    "expenses",
	"total_assets":      "assets",
	"total_liabilities": "liabilities",
	"program_ratio":     "program_expense_ratio",
	"staff":             "staff_count",
	"volunteers":        "volunteer_count",
	"beneficiaries":     "beneficiaries_served",
}

// rowMapper converts tabular rows into profiles using a header row.
type rowMapper struct {
	setters []setter
}

func newRowMapper(header []string) (*rowMapper, error) {
	m := &rowMapper{setters: make([]setter, len(header))}
	var hasEIN bool
	for i, h := range header {
		name := normalizeHeader(h)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		set, ok := columns[name]
		if !ok {
			if name != "" {
				zap.L().Debug("profile: ignoring unknown column", zap.String("column", h))
			}
			continue
		}
		m.setters[i] = set
		hasEIN = hasEIN || name == "ein"
	}
	if !hasEIN {
		return nil, eris.New("profile: header has no ein column")
	}
	return m, nil
}

// Map builds a profile from one data row. line is used in error messages.
func (m *rowMapper) Map(row []string, line int) (model.RawProfile, error) {
	var p model.RawProfile
	for i, cell := range row {
		if i >= len(m.setters) || m.setters[i] == nil {
			continue
		}
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		if err := m.setters[i](&p, v); err != nil {
			return p, eris.Wrapf(err, "profile: line %d column %d", line, i+1)
		}
	}
	return p, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "_", "-", "_", "(", "", ")", "", "$", "").Replace(h)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ListSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseNumber accepts plain numbers and formatted amounts such as
// "$1,250,000".
func parseNumber(v string) (float64, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, eris.Errorf("invalid number %q", v)
	}
	return f, nil
}

func money(field func(*model.RawProfile) **float64) setter {
	return func(p *model.RawProfile, v string) error {
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		*field(p) = &f
		return nil
	}
}

// ratio accepts fractions ("0.82") and percentages ("82%").
func ratio(field func(*model.RawProfile) **float64) setter {
	return func(p *model.RawProfile, v string) error {
		pct := strings.HasSuffix(v, "%")
		f, err := parseNumber(strings.TrimSuffix(v, "%"))
		if err != nil {
			return err
		}
		if pct {
			f /= 100
		}
		*field(p) = &f
		return nil
	}
}

func count(field func(*model.RawProfile) **int) setter {
	return func(p *model.RawProfile, v string) error {
		f, err := parseNumber(v)
		if err != nil {
			return err
		}
		n := int(f)
		*field(p) = &n
		return nil
	}
}

// revenueHistory parses "2021:1000000;2022:1200000".
func revenueHistory(p *model.RawProfile, v string) error {
	for _, entry := range splitList(v) {
		year, amount, ok := strings.Cut(entry, ":")
		if !ok {
			return eris.Errorf("invalid revenue history entry %q, want YEAR:AMOUNT", entry)
		}
		y, err := strconv.Atoi(strings.TrimSpace(year))
		if err != nil {
			return eris.Errorf("invalid revenue history year %q", year)
		}
		r, err := parseNumber(amount)
		if err != nil {
			return err
		}
		p.Financials.RevenueHistory = append(p.Financials.RevenueHistory, model.FiscalYear{Year: y, Revenue: r})
	}
	return nil
}

// Header returns the canonical column names, in a stable order, for
// writing profile templates.
func Header() []string {
	return []string{
		"ein", "name", "mission", "programs", "categories", "website", "status",
		"revenue", "expenses", "assets", "liabilities", "program_expenses",
		"administrative_expenses", "fundraising_expenses", "program_expense_ratio", "revenue_history",
		"staff_count", "volunteer_count", "years_active", "facility_sqft", "beneficiaries_served",
		"followers", "engagement_rate", "platforms",
		"city", "state", "zip", "service_areas",
	}
}
