// Package roi estimates the return on a prospective partnership with a
// nonprofit.
package roi

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// Factors lists the ROI factors in aggregation order.
var Factors = []string{
	model.ROIResourceSharing,
	model.ROICostSavings,
	model.ROIImpactMultiplier,
	model.ROIReachExpansion,
}

// ReferenceScale is the raw range mapped onto [0,1].
type ReferenceScale struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Normalize maps v onto [0,1] against the scale.
func (s ReferenceScale) Normalize(v float64) float64 {
	if s.Max <= s.Min || math.IsNaN(v) {
		return 0
	}
	n := (v - s.Min) / (s.Max - s.Min)
	return math.Max(0, math.Min(1, n))
}

// Raw returns the raw value whose normalized value is n.
func (s ReferenceScale) Raw(n float64) float64 {
	return s.Min + n*(s.Max-s.Min)
}

// Assumptions are the valuation constants behind the dollar estimates.
type Assumptions struct {
	VolunteerHourValue    float64 // $ per volunteer hour
	HoursPerVolunteer     float64 // shared hours per volunteer per year
	FollowerVolunteerRate float64 // volunteers per follower when no count is reported
	FacilityValuePerSqFt  float64 // $ per shared sq ft per year
	AssetFacilityShare    float64 // share of assets treated as facilities
	FacilityMonthlyRate   float64 // monthly sharing value of facility assets
	FacilityAssetFloor    float64 // assets below this have no shareable facilities
	EquipmentShare        float64 // share of program expenses that is shareable
	ExpertisePerProgram   float64 // $ per program

	ProcurementRate       float64 // share of expenses saved by joint procurement
	AdminRate             float64 // share of admin expenses saved
	MarketingRate         float64 // share of fundraising expenses saved
	TargetProgramRatio    float64 // program ratio shared services can lift toward
	SharedServicesCapture float64 // share of the ratio gap captured

	MaxMultiplier float64 // impact multiplier at full category overlap

	CostPerBeneficiary  float64 // $ of program spend per beneficiary
	ExpansionRate       float64 // share of candidate reach that is new to the sponsor
	BeneficiaryValue    float64 // $ value per new beneficiary
	DefaultSponsorReach int     // used when the partnership context has none

	CapabilityPerProgram float64 // $ per complementary program
	HighEfficiencyRatio  float64 // program ratio earning HighEfficiencyBonus
	HighEfficiencyBonus  float64
	MidEfficiencyRatio   float64 // program ratio earning MidEfficiencyBonus
	MidEfficiencyBonus   float64

	ContinuityRate    float64 // share of program expenses valued as backup capacity
	StableThreshold   float64 // stability above which StableBonus applies
	StableBonus       float64
	SteadyThreshold   float64 // stability above which SteadyBonus applies
	SteadyBonus       float64
	ActiveStatusBonus float64

	BaseInvestment        map[PartnershipType]float64
	IntegrationCost       float64 // at or above IntegrationRevenueCap
	IntegrationRevenueCap float64
	OnboardingPerProgram  float64
	TechnologyCost        float64
	CoordinationCost      float64
}

// Config configures a Calculator.
type Config struct {
	// Baseline is the normalized value given to a factor whose inputs are
	// missing.
	Baseline float64
	// Weights holds one weight per entry of Factors, in the same order.
	Weights     []float64
	Scales      map[string]ReferenceScale
	Assumptions Assumptions
}

// DefaultAssumptions returns the default valuation constants.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		VolunteerHourValue:    29.95,
		HoursPerVolunteer:     20,
		FollowerVolunteerRate: 0.01,
		FacilityValuePerSqFt:  18,
		AssetFacilityShare:    0.1,
		FacilityMonthlyRate:   0.02,
		FacilityAssetFloor:    500_000,
		EquipmentShare:        0.05,
		ExpertisePerProgram:   5_000,

		ProcurementRate:       0.04,
		AdminRate:             0.10,
		MarketingRate:         0.15,
		TargetProgramRatio:    0.80,
		SharedServicesCapture: 0.5,

		MaxMultiplier: 3.0,

		CostPerBeneficiary:  150,
		ExpansionRate:       0.3,
		BeneficiaryValue:    150,
		DefaultSponsorReach: 100_000,

		CapabilityPerProgram: 8_000,
		HighEfficiencyRatio:  0.75,
		HighEfficiencyBonus:  20_000,
		MidEfficiencyRatio:   0.65,
		MidEfficiencyBonus:   10_000,

		ContinuityRate:    0.02,
		StableThreshold:   0.7,
		StableBonus:       15_000,
		SteadyThreshold:   0.5,
		SteadyBonus:       8_000,
		ActiveStatusBonus: 5_000,

		BaseInvestment: map[PartnershipType]float64{
			Standard:  25_000,
			Strategic: 50_000,
			Merger:    100_000,
		},
		IntegrationCost:       20_000,
		IntegrationRevenueCap: 5_000_000,
		OnboardingPerProgram:  1_000,
		TechnologyCost:        10_000,
		CoordinationCost:      15_000,
	}
}

// DefaultConfig returns equal factor weights, a 0.5 baseline and the
// default reference scales.
func DefaultConfig() Config {
	a := DefaultAssumptions()
	return Config{
		Baseline: 0.5,
		Weights:  []float64{0.25, 0.25, 0.25, 0.25},
		Scales: map[string]ReferenceScale{
			model.ROIResourceSharing:  {Min: 0, Max: 500_000},
			model.ROICostSavings:      {Min: 0, Max: 500_000},
			model.ROIImpactMultiplier: {Min: 1, Max: a.MaxMultiplier},
			model.ROIReachExpansion:   {Min: 0, Max: 1},
		},
		Assumptions: a,
	}
}

// FromConfig overlays file configuration on the defaults. Zero values keep
// the default.
func FromConfig(c config.ROIConfig) (Config, error) {
	cfg := DefaultConfig()
	if c.Baseline > 0 {
		cfg.Baseline = c.Baseline
	}
	if len(c.Weights) > 0 {
		for name := range c.Weights {
			if factorIndex(name) < 0 {
				return Config{}, eris.Errorf("roi: unknown factor %q in weights", name)
			}
		}
		cfg.Weights = make([]float64, len(Factors))
		for i, f := range Factors {
			cfg.Weights[i] = c.Weights[f]
		}
	}
	for name, s := range c.Scales {
		if factorIndex(name) < 0 {
			return Config{}, eris.Errorf("roi: unknown factor %q in scales", name)
		}
		cfg.Scales[name] = ReferenceScale{Min: s.Min, Max: s.Max}
	}

	a := &cfg.Assumptions
	setIfPositive(&a.VolunteerHourValue, c.VolunteerHourValue)
	setIfPositive(&a.BeneficiaryValue, c.BeneficiaryValue)
	setIfPositive(&a.CostPerBeneficiary, c.CostPerBeneficiary)
	setIfPositive(&a.TargetProgramRatio, c.TargetProgramRatio)
	setIfPositive(&a.SharedServicesCapture, c.SharedServicesCapture)
	if c.MaxMultiplier > 0 {
		a.MaxMultiplier = c.MaxMultiplier
		if _, ok := c.Scales[model.ROIImpactMultiplier]; !ok {
			cfg.Scales[model.ROIImpactMultiplier] = ReferenceScale{Min: 1, Max: c.MaxMultiplier}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []string

	if c.Baseline < 0 || c.Baseline > 1 || math.IsNaN(c.Baseline) {
		errs = append(errs, "baseline must be between 0 and 1")
	}
	if len(c.Weights) != len(Factors) {
		errs = append(errs, fmt.Sprintf("expected %d factor weights, got %d", len(Factors), len(c.Weights)))
	} else {
		var sum float64
		for i, w := range c.Weights {
			if w < 0 || math.IsNaN(w) {
				errs = append(errs, fmt.Sprintf("%s weight must be >= 0", Factors[i]))
			}
			sum += w
		}
		if math.Abs(sum-1) > 1e-6 {
			errs = append(errs, fmt.Sprintf("factor weights should sum to 1, got %.4f", sum))
		}
	}
	for _, f := range Factors {
		s, ok := c.Scales[f]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s scale is required", f))
			continue
		}
		if s.Max <= s.Min {
			errs = append(errs, fmt.Sprintf("%s scale max must be > min", f))
		}
	}
	if c.Assumptions.MaxMultiplier < 1 {
		errs = append(errs, "max_multiplier must be >= 1")
	}
	if c.Assumptions.CostPerBeneficiary <= 0 {
		errs = append(errs, "cost_per_beneficiary must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("roi: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func factorIndex(name string) int {
	for i, f := range Factors {
		if f == name {
			return i
		}
	}
	return -1
}

func setIfPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
