package model

import "sort"

// Field names a profile fact whose presence is tracked.
type Field string

const (
	FieldMission             Field = "mission"
	FieldCategories          Field = "categories"
	FieldPrograms            Field = "programs"
	FieldRevenue             Field = "revenue"
	FieldExpenses            Field = "expenses"
	FieldAssets              Field = "assets"
	FieldLiabilities         Field = "liabilities"
	FieldProgramExpenses     Field = "program_expenses"
	FieldAdminExpenses       Field = "administrative_expenses"
	FieldFundraisingExpenses Field = "fundraising_expenses"
	FieldProgramExpenseRatio Field = "program_expense_ratio"
	FieldRevenueHistory      Field = "revenue_history"
	FieldStaffCount          Field = "staff_count"
	FieldVolunteerCount      Field = "volunteer_count"
	FieldYearsActive         Field = "years_active"
	FieldFacilitySqFt        Field = "facility_sqft"
	FieldBeneficiaries       Field = "beneficiaries_served"
	FieldFollowers           Field = "followers"
	FieldEngagementRate      Field = "engagement_rate"
	FieldServiceAreas        Field = "service_areas"
)

// ExpectedFields are the fields counted by the data-quality completeness
// fraction.
var ExpectedFields = []Field{
	FieldMission,
	FieldCategories,
	FieldPrograms,
	FieldRevenue,
	FieldExpenses,
	FieldAssets,
	FieldLiabilities,
	FieldProgramExpenseRatio,
	FieldStaffCount,
	FieldVolunteerCount,
	FieldYearsActive,
	FieldFollowers,
	FieldEngagementRate,
	FieldServiceAreas,
	FieldBeneficiaries,
}

// FieldSet records which fields were present on a profile.
type FieldSet map[Field]bool

// Has reports whether f is present.
func (s FieldSet) Has(f Field) bool {
	return s[f]
}

// Sorted returns the present fields in lexical order.
func (s FieldSet) Sorted() []Field {
	out := make([]Field, 0, len(s))
	for f, ok := range s {
		if ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Degradation reasons.
const (
	ReasonMissingInput         = "missing_input"
	ReasonEmbeddingUnavailable = "embedding_unavailable"
	ReasonEmbeddingTimeout     = "embedding_timeout"
	ReasonEmptyMission         = "empty_mission"
	ReasonNoReferenceVector    = "no_reference_vector"
)

// Degradation marks a sub-computation that fell back to a neutral value.
// It is an annotation, not an error.
type Degradation struct {
	Factor string `json:"factor"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// DataQualityReport summarizes how complete a profile is.
type DataQualityReport struct {
	Completeness float64       `json:"completeness"`
	Present      []Field       `json:"present"`
	Missing      []Field       `json:"missing"`
	Degradations []Degradation `json:"degradations,omitempty"`
}

// Degrade appends a degradation to the report.
func (r *DataQualityReport) Degrade(d ...Degradation) {
	r.Degradations = append(r.Degradations, d...)
}
