package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// WeightTolerance is how far a weight sum may drift from 1.
const WeightTolerance = 1e-6

// Weight is the configured weight of one named factor.
type Weight struct {
	Factor string  `json:"factor" yaml:"factor"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// Weights is an ordered weight configuration.
type Weights []Weight

// DefaultWeights returns the default composite weights.
func DefaultWeights() Weights {
	return Weights{
		{Factor: model.FactorMission, Weight: 0.35},
		{Factor: model.FactorROI, Weight: 0.25},
		{Factor: model.FactorFinancialStability, Weight: 0.15},
		{Factor: model.FactorOrganizationalCapacity, Weight: 0.15},
		{Factor: model.FactorDataQuality, Weight: 0.10},
	}
}

// WeightsFromMap orders m by the factor registry; names the registry does
// not know are appended in lexical order so Validate can reject them.
func WeightsFromMap(m map[string]float64, factors []Factor) Weights {
	out := make(Weights, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, f := range factors {
		if w, ok := m[f.Name]; ok {
			out = append(out, Weight{Factor: f.Name, Weight: w})
			seen[f.Name] = true
		}
	}
	var unknown []string
	for name := range m {
		if !seen[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		out = append(out, Weight{Factor: name, Weight: m[name]})
	}
	return out
}

// Of returns the weight of factor, or 0 when it is not configured.
func (ws Weights) Of(factor string) float64 {
	for _, w := range ws {
		if w.Factor == factor {
			return w.Weight
		}
	}
	return 0
}

// Sum returns the total weight.
func (ws Weights) Sum() float64 {
	var sum float64
	for _, w := range ws {
		sum += w.Weight
	}
	return sum
}

// Validate checks ws against the factor registry. It fails with
// model.ErrInvalidWeights when a weight is negative or NaN, names an
// unknown or repeated factor, or the total is not 1 within WeightTolerance.
func (ws Weights) Validate(factors []Factor) error {
	known := make(map[string]bool, len(factors))
	for _, f := range factors {
		known[f.Name] = true
	}

	var errs []string
	seen := make(map[string]bool, len(ws))
	for _, w := range ws {
		switch {
		case !known[w.Factor]:
			errs = append(errs, fmt.Sprintf("unknown factor %q", w.Factor))
		case seen[w.Factor]:
			errs = append(errs, fmt.Sprintf("duplicate factor %q", w.Factor))
		}
		seen[w.Factor] = true
		if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) || w.Weight < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be a finite number >= 0", w.Factor))
		}
	}
	if sum := ws.Sum(); math.IsNaN(sum) || math.Abs(sum-1) > WeightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1, got %.6f", sum))
	}

	if len(errs) > 0 {
		return eris.Wrapf(model.ErrInvalidWeights, "ranking: %s", strings.Join(errs, "; "))
	}
	return nil
}
