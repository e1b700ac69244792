// Package model defines the records that flow through the nonprofit scoring
// and ranking pipeline.
package model

// ServiceCategory is a service area tag declared by a nonprofit.
type ServiceCategory string

const (
	CategoryDisasterServices      ServiceCategory = "disaster_services"
	CategoryHealthSafety          ServiceCategory = "health_safety"
	CategorySupportServices       ServiceCategory = "support_services"
	CategoryBloodServices         ServiceCategory = "blood_services"
	CategoryTrainingEducation     ServiceCategory = "training_education"
	CategoryInternationalServices ServiceCategory = "international_services"
)

// KnownCategories lists the service categories the ranker understands.
var KnownCategories = []ServiceCategory{
	CategoryDisasterServices,
	CategoryHealthSafety,
	CategorySupportServices,
	CategoryBloodServices,
	CategoryTrainingEducation,
	CategoryInternationalServices,
}

// Status is the operating status reported for a nonprofit.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusUnknown   Status = "unknown"
)

// FiscalYear is a single year of reported revenue.
type FiscalYear struct {
	Year    int     `json:"year" yaml:"year"`
	Revenue float64 `json:"revenue" yaml:"revenue"`
}

// Financials holds filing-derived facts. A nil pointer means the fact was
// not reported.
type Financials struct {
	Revenue                *float64     `json:"revenue,omitempty" yaml:"revenue,omitempty"`
	Expenses               *float64     `json:"expenses,omitempty" yaml:"expenses,omitempty"`
	Assets                 *float64     `json:"assets,omitempty" yaml:"assets,omitempty"`
	Liabilities            *float64     `json:"liabilities,omitempty" yaml:"liabilities,omitempty"`
	ProgramExpenses        *float64     `json:"program_expenses,omitempty" yaml:"program_expenses,omitempty"`
	AdministrativeExpenses *float64     `json:"administrative_expenses,omitempty" yaml:"administrative_expenses,omitempty"`
	FundraisingExpenses    *float64     `json:"fundraising_expenses,omitempty" yaml:"fundraising_expenses,omitempty"`
	ProgramExpenseRatio    *float64     `json:"program_expense_ratio,omitempty" yaml:"program_expense_ratio,omitempty"`
	RevenueHistory         []FiscalYear `json:"revenue_history,omitempty" yaml:"revenue_history,omitempty"`
}

// Capacity holds organizational capacity facts.
type Capacity struct {
	StaffCount          *int     `json:"staff_count,omitempty" yaml:"staff_count,omitempty"`
	VolunteerCount      *int     `json:"volunteer_count,omitempty" yaml:"volunteer_count,omitempty"`
	YearsActive         *int     `json:"years_active,omitempty" yaml:"years_active,omitempty"`
	FacilitySqFt        *float64 `json:"facility_sqft,omitempty" yaml:"facility_sqft,omitempty"`
	BeneficiariesServed *int     `json:"beneficiaries_served,omitempty" yaml:"beneficiaries_served,omitempty"`
}

// Social summarizes social and media signals.
type Social struct {
	Followers      *int     `json:"followers,omitempty" yaml:"followers,omitempty"`
	EngagementRate *float64 `json:"engagement_rate,omitempty" yaml:"engagement_rate,omitempty"`
	Platforms      []string `json:"platforms,omitempty" yaml:"platforms,omitempty"`
}

// Location describes where a nonprofit is based and where it operates.
type Location struct {
	City         string   `json:"city,omitempty" yaml:"city,omitempty"`
	State        string   `json:"state,omitempty" yaml:"state,omitempty"`
	Zip          string   `json:"zip,omitempty" yaml:"zip,omitempty"`
	ServiceAreas []string `json:"service_areas,omitempty" yaml:"service_areas,omitempty"`
}

// RawProfile is a nonprofit record as supplied by a data collector. Any
// field may be missing.
type RawProfile struct {
	EIN        string     `json:"ein" yaml:"ein"`
	Name       string     `json:"name" yaml:"name"`
	Mission    string     `json:"mission,omitempty" yaml:"mission,omitempty"`
	Programs   []string   `json:"programs,omitempty" yaml:"programs,omitempty"`
	Categories []string   `json:"categories,omitempty" yaml:"categories,omitempty"`
	Website    string     `json:"website,omitempty" yaml:"website,omitempty"`
	Status     string     `json:"status,omitempty" yaml:"status,omitempty"`
	Financials Financials `json:"financials" yaml:"financials"`
	Capacity   Capacity   `json:"capacity" yaml:"capacity"`
	Social     Social     `json:"social" yaml:"social"`
	Location   Location   `json:"location" yaml:"location"`
}

// NonprofitProfile is a validated profile. Numeric facts keep their pointer
// form; Present records which expected fields were supplied.
type NonprofitProfile struct {
	EIN        string            `json:"ein"`
	Name       string            `json:"name"`
	Mission    string            `json:"mission,omitempty"`
	Programs   []string          `json:"programs,omitempty"`
	Categories []ServiceCategory `json:"categories,omitempty"`
	Website    string            `json:"website,omitempty"`
	Status     Status            `json:"status"`
	Financials Financials        `json:"financials"`
	Capacity   Capacity          `json:"capacity"`
	Social     Social            `json:"social"`
	Location   Location          `json:"location"`
	Present    FieldSet          `json:"present"`
}

// HasCategory reports whether the profile declares the given category.
func (p *NonprofitProfile) HasCategory(c ServiceCategory) bool {
	for _, have := range p.Categories {
		if have == c {
			return true
		}
	}
	return false
}
