package roi

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// PartnershipType selects the base investment.
type PartnershipType string

const (
	Standard  PartnershipType = "standard"
	Strategic PartnershipType = "strategic"
	Merger    PartnershipType = "merger"
)

// Resource kinds a sponsor can list in its catalog.
const (
	ResourceVolunteers = "volunteers"
	ResourceFacilities = "facilities"
	ResourceEquipment  = "equipment"
	ResourceExpertise  = "expertise"
)

// PartnershipContext describes the sponsor side of a prospective
// partnership. The zero value is usable.
type PartnershipContext struct {
	// SponsorReach is the number of beneficiaries the sponsor already serves.
	SponsorReach int `json:"sponsor_reach,omitempty" yaml:"sponsor_reach,omitempty"`
	// SponsorServiceAreas are the areas the sponsor already covers.
	SponsorServiceAreas []string `json:"sponsor_service_areas,omitempty" yaml:"sponsor_service_areas,omitempty"`
	// PartnershipType defaults to standard.
	PartnershipType PartnershipType `json:"partnership_type,omitempty" yaml:"partnership_type,omitempty"`
	// ResourceCatalog limits resource sharing to the listed kinds. Empty
	// means all kinds.
	ResourceCatalog []string `json:"resource_catalog,omitempty" yaml:"resource_catalog,omitempty"`
}

// Calculator computes ROI breakdowns. It holds no per-call state and is
// safe for concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator validates cfg and returns a Calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the calculator's configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Calculate estimates the ROI of partnering with p. overlap is the mission
// category overlap in [0,1]. Each factor falls back to the configured
// baseline when its inputs are missing and records a missing_input
// degradation.
func (c *Calculator) Calculate(p *model.NonprofitProfile, overlap float64, pctx PartnershipContext) model.ROIBreakdown {
	b := model.ROIBreakdown{Normalized: make(map[string]float64, len(Factors))}
	a := c.cfg.Assumptions

	// Dollar estimates use observed values only; baselines affect the score.
	var annual float64
	valueMultiplier := 1.0

	resource, ok := c.resourceSharing(p, pctx)
	c.set(&b, model.ROIResourceSharing, resource, ok, "no volunteer, facility, or program facts")
	b.ResourceSharing = c.raw(model.ROIResourceSharing, resource, ok)
	if ok {
		annual += resource
	}

	savings, ok := c.costSavings(p)
	c.set(&b, model.ROICostSavings, savings, ok, "expenses not reported")
	b.CostSavings = c.raw(model.ROICostSavings, savings, ok)
	if ok {
		annual += savings
	}

	ok = len(p.Categories) > 0
	multiplier := 1 + clamp01(overlap)*(a.MaxMultiplier-1)
	c.set(&b, model.ROIImpactMultiplier, multiplier, ok, "no declared service categories")
	b.ImpactMultiplier = c.raw(model.ROIImpactMultiplier, multiplier, ok)
	if ok {
		valueMultiplier = multiplier
	}

	reach, newBeneficiaries, ok := c.reachExpansion(p, pctx)
	c.set(&b, model.ROIReachExpansion, reach, ok, "neither beneficiaries served nor program expenses reported")
	b.ReachExpansion = c.raw(model.ROIReachExpansion, reach, ok)
	b.NewBeneficiaries = newBeneficiaries

	for i, f := range Factors {
		b.Score += c.cfg.Weights[i] * b.Normalized[f]
	}
	b.Score = clamp01(b.Score)

	// Capability and risk value are not scaled by the impact multiplier.
	b.CapabilityValue = c.capabilityEnhancement(p)
	b.RiskMitigation = c.riskMitigation(p)
	direct := b.CapabilityValue + b.RiskMitigation

	b.EstimatedValue = (annual+float64(b.NewBeneficiaries)*a.BeneficiaryValue)*valueMultiplier + direct
	b.Investment = c.investment(p, pctx)
	if b.Investment > 0 {
		b.ROIRatio = (b.EstimatedValue - b.Investment) / b.Investment
	}
	if annual+direct > 0 {
		b.PaybackMonths = int(b.Investment / (annual + direct) * 12)
	}
	b.Degraded = len(b.Degradations) > 0
	return b
}

// set records the normalized value of a factor, or the baseline and a
// degradation when its inputs are missing.
func (c *Calculator) set(b *model.ROIBreakdown, factor string, raw float64, ok bool, detail string) {
	if !ok {
		b.Normalized[factor] = c.cfg.Baseline
		b.Degradations = append(b.Degradations, model.Degradation{
			Factor: factor,
			Reason: model.ReasonMissingInput,
			Detail: detail,
		})
		return
	}
	b.Normalized[factor] = c.cfg.Scales[factor].Normalize(raw)
}

// raw returns the clamped raw factor value, or the baseline's raw
// equivalent when its inputs are missing.
func (c *Calculator) raw(factor string, raw float64, ok bool) float64 {
	if !ok {
		return math.Max(0, c.cfg.Scales[factor].Raw(c.cfg.Baseline))
	}
	return math.Max(0, raw)
}

func (c *Calculator) resourceSharing(p *model.NonprofitProfile, pctx PartnershipContext) (float64, bool) {
	a := c.cfg.Assumptions
	var total float64
	var found bool

	if offered(pctx, ResourceVolunteers) {
		volunteers := -1.0
		if p.Capacity.VolunteerCount != nil {
			volunteers = float64(*p.Capacity.VolunteerCount)
		} else if p.Social.Followers != nil {
			volunteers = float64(*p.Social.Followers) * a.FollowerVolunteerRate
		}
		if volunteers >= 0 {
			total += volunteers * a.HoursPerVolunteer * a.VolunteerHourValue
			found = true
		}
	}

	if offered(pctx, ResourceFacilities) {
		switch {
		case p.Capacity.FacilitySqFt != nil:
			total += *p.Capacity.FacilitySqFt * a.FacilityValuePerSqFt
			found = true
		case p.Financials.Assets != nil:
			if *p.Financials.Assets > a.FacilityAssetFloor {
				total += *p.Financials.Assets * a.AssetFacilityShare * a.FacilityMonthlyRate * 12
			}
			found = true
		}
	}

	if offered(pctx, ResourceEquipment) && p.Financials.ProgramExpenses != nil {
		total += *p.Financials.ProgramExpenses * a.EquipmentShare
		found = true
	}

	if offered(pctx, ResourceExpertise) && len(p.Programs) > 0 {
		total += float64(len(p.Programs)) * a.ExpertisePerProgram
		found = true
	}

	return total, found
}

func (c *Calculator) costSavings(p *model.NonprofitProfile) (float64, bool) {
	a := c.cfg.Assumptions
	f := p.Financials
	if f.Expenses == nil {
		return 0, false
	}
	expenses := *f.Expenses

	total := expenses * a.ProcurementRate
	if f.AdministrativeExpenses != nil {
		total += *f.AdministrativeExpenses * a.AdminRate
	}
	if f.FundraisingExpenses != nil {
		total += *f.FundraisingExpenses * a.MarketingRate
	}
	if f.ProgramExpenseRatio != nil {
		gap := math.Max(0, a.TargetProgramRatio-*f.ProgramExpenseRatio)
		total += gap * expenses * a.SharedServicesCapture
	}
	return total, true
}

// capabilityEnhancement values the programs and efficiency a partner brings.
func (c *Calculator) capabilityEnhancement(p *model.NonprofitProfile) float64 {
	a := c.cfg.Assumptions
	value := float64(len(p.Programs)) * a.CapabilityPerProgram
	if r := p.Financials.ProgramExpenseRatio; r != nil {
		switch {
		case *r > a.HighEfficiencyRatio:
			value += a.HighEfficiencyBonus
		case *r > a.MidEfficiencyRatio:
			value += a.MidEfficiencyBonus
		}
	}
	return value
}

// riskMitigation values backup capacity, partner stability and an active
// filing status.
func (c *Calculator) riskMitigation(p *model.NonprofitProfile) float64 {
	a := c.cfg.Assumptions
	var value float64
	if pe := p.Financials.ProgramExpenses; pe != nil {
		value += *pe * a.ContinuityRate
	}
	switch s := observedStability(p.Financials); {
	case s > a.StableThreshold:
		value += a.StableBonus
	case s > a.SteadyThreshold:
		value += a.SteadyBonus
	}
	if p.Status == model.StatusActive {
		value += a.ActiveStatusBonus
	}
	return value
}

// observedStability scores revenue, asset coverage and program ratio from
// reported facts only; missing facts add nothing.
func observedStability(f model.Financials) float64 {
	var s float64
	if f.Revenue != nil && *f.Revenue > 0 {
		s += 0.3
	}
	if f.Assets != nil && f.Liabilities != nil && *f.Liabilities > 0 {
		switch coverage := *f.Assets / *f.Liabilities; {
		case coverage > 2:
			s += 0.3
		case coverage > 1:
			s += 0.2
		}
	}
	if f.ProgramExpenseRatio != nil {
		s += *f.ProgramExpenseRatio * 0.4
	}
	return math.Min(s, 1)
}

// reachExpansion returns the candidate-to-sponsor reach ratio and the
// estimated number of beneficiaries new to the sponsor.
func (c *Calculator) reachExpansion(p *model.NonprofitProfile, pctx PartnershipContext) (float64, int, bool) {
	a := c.cfg.Assumptions

	var reach float64
	switch {
	case p.Capacity.BeneficiariesServed != nil:
		reach = float64(*p.Capacity.BeneficiariesServed)
	case p.Financials.ProgramExpenses != nil:
		reach = *p.Financials.ProgramExpenses / a.CostPerBeneficiary
	default:
		return 0, 0, false
	}

	sponsor := pctx.SponsorReach
	if sponsor <= 0 {
		sponsor = a.DefaultSponsorReach
	}
	if sponsor <= 0 {
		sponsor = 1
	}
	areaFactor := NewAreaFraction(p.Location.ServiceAreas, pctx.SponsorServiceAreas)

	ratio := reach / float64(sponsor) * areaFactor
	newBeneficiaries := int(reach * a.ExpansionRate * areaFactor)
	return ratio, newBeneficiaries, true
}

// NewAreaFraction returns the share of candidate areas the sponsor does not
// already cover. Unknown areas on either side count as fully new.
func NewAreaFraction(candidate, sponsor []string) float64 {
	if len(candidate) == 0 || len(sponsor) == 0 {
		return 1
	}
	covered := make(map[string]bool, len(sponsor))
	for _, s := range sponsor {
		covered[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	var fresh int
	for _, area := range candidate {
		if !covered[strings.ToUpper(strings.TrimSpace(area))] {
			fresh++
		}
	}
	return float64(fresh) / float64(len(candidate))
}

func (c *Calculator) investment(p *model.NonprofitProfile, pctx PartnershipContext) float64 {
	a := c.cfg.Assumptions

	base, ok := a.BaseInvestment[pctx.PartnershipType]
	if !ok {
		base = a.BaseInvestment[Standard]
	}
	total := base
	if p.Financials.Revenue != nil && a.IntegrationRevenueCap > 0 {
		total += a.IntegrationCost * math.Min(1, *p.Financials.Revenue/a.IntegrationRevenueCap)
	}
	total += float64(len(p.Programs)) * a.OnboardingPerProgram
	total += a.TechnologyCost + a.CoordinationCost
	return total
}

func offered(pctx PartnershipContext, kind string) bool {
	if len(pctx.ResourceCatalog) == 0 {
		return true
	}
	for _, k := range pctx.ResourceCatalog {
		if strings.EqualFold(strings.TrimSpace(k), kind) {
			return true
		}
	}
	return false
}

// Summary describes a breakdown in one line, e.g.
// "Strong ROI potential (2.4x return), payback 7 months".
func Summary(b model.ROIBreakdown) string {
	var label string
	switch {
	case b.ROIRatio > 3:
		label = "Exceptional"
	case b.ROIRatio > 2:
		label = "Strong"
	case b.ROIRatio > 1:
		label = "Positive"
	default:
		label = "Limited"
	}
	s := fmt.Sprintf("%s ROI potential (%.1fx return)", label, b.ROIRatio)
	if b.PaybackMonths > 0 {
		s += fmt.Sprintf(", payback %d months", b.PaybackMonths)
	}
	return s
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
