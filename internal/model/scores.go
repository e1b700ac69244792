package model

import "time"

// MissionBreakdown is the mission-alignment half of a score breakdown.
type MissionBreakdown struct {
	KeywordScore      float64           `json:"keyword_score"`
	CategoryScore     float64           `json:"category_score"`
	SemanticScore     float64           `json:"semantic_score"`
	Alignment         float64           `json:"alignment"`
	MatchedKeywords   []string          `json:"matched_keywords,omitempty"`
	MatchedCategories []ServiceCategory `json:"matched_categories,omitempty"`
	Degraded          bool              `json:"degraded"`
	Degradations      []Degradation     `json:"degradations,omitempty"`
}

// ROI factor names.
const (
	ROIResourceSharing  = "resource_sharing"
	ROICostSavings      = "cost_savings"
	ROIImpactMultiplier = "impact_multiplier"
	ROIReachExpansion   = "reach_expansion"
)

// ROIBreakdown is the partnership-ROI half of a score breakdown.
// CapabilityValue and RiskMitigation are dollar-only components: they feed
// EstimatedValue but no normalized factor.
type ROIBreakdown struct {
	ResourceSharing  float64            `json:"resource_sharing"`
	CostSavings      float64            `json:"cost_savings"`
	ImpactMultiplier float64            `json:"impact_multiplier"`
	ReachExpansion   float64            `json:"reach_expansion"`
	NewBeneficiaries int                `json:"new_beneficiaries"`
	Normalized       map[string]float64 `json:"normalized"`
	Score            float64            `json:"score"`
	CapabilityValue  float64            `json:"capability_value"`
	RiskMitigation   float64            `json:"risk_mitigation"`
	EstimatedValue   float64            `json:"estimated_value"`
	Investment       float64            `json:"investment"`
	ROIRatio         float64            `json:"roi_ratio"`
	PaybackMonths    int                `json:"payback_months"`
	Degraded         bool               `json:"degraded"`
	Degradations     []Degradation      `json:"degradations,omitempty"`
}

// Ranking factor names.
const (
	FactorMission                = "mission"
	FactorROI                    = "roi"
	FactorFinancialStability     = "financial_stability"
	FactorOrganizationalCapacity = "organizational_capacity"
	FactorDataQuality            = "data_quality"
)

// SubScore is one weighted factor of a composite score.
type SubScore struct {
	Factor       string  `json:"factor"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Reason is one rationale line for a ranked candidate.
type Reason struct {
	Factor       string  `json:"factor"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail"`
}

// RankedCandidate is a scored nonprofit with its position in a ranking.
type RankedCandidate struct {
	EIN          string            `json:"ein"`
	Name         string            `json:"name"`
	Rank         int               `json:"rank"`
	Composite    float64           `json:"composite"`
	SubScores    []SubScore        `json:"sub_scores"`
	Mission      MissionBreakdown  `json:"mission"`
	ROI          ROIBreakdown      `json:"roi"`
	Quality      DataQualityReport `json:"quality"`
	Degraded     bool              `json:"degraded"`
	Degradations []Degradation     `json:"degradations,omitempty"`
	Rationale    []Reason          `json:"rationale"`
}

// SubScore returns the named sub-score, or zero if the factor is unknown.
func (c *RankedCandidate) SubScore(factor string) SubScore {
	for _, s := range c.SubScores {
		if s.Factor == factor {
			return s
		}
	}
	return SubScore{Factor: factor}
}

// Exclusion records a candidate dropped from a ranking.
type Exclusion struct {
	EIN    string `json:"ein"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// FactorDelta is one row of a pairwise comparison.
type FactorDelta struct {
	Factor        string  `json:"factor"`
	A             float64 `json:"a"`
	B             float64 `json:"b"`
	Delta         float64 `json:"delta"`
	WeightedDelta float64 `json:"weighted_delta"`
}

// Comparison is the result of comparing two ranked candidates.
type Comparison struct {
	A       string        `json:"a"`
	B       string        `json:"b"`
	Delta   float64       `json:"delta"`
	Favored string        `json:"favored"`
	Factors []FactorDelta `json:"factors"`
	Summary string        `json:"summary"`
}

// Run is a persisted ranking invocation.
type Run struct {
	ID             string            `json:"id"`
	ConfigHash     string            `json:"config_hash"`
	CandidateCount int               `json:"candidate_count"`
	ExcludedCount  int               `json:"excluded_count"`
	Candidates     []RankedCandidate `json:"candidates"`
	Excluded       []Exclusion       `json:"excluded,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
