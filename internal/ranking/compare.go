package ranking

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/normalize"
)

// Compare reports how a differs from b factor by factor. Delta is a's
// composite minus b's; neither candidate is re-ranked.
func Compare(a, b model.RankedCandidate) model.Comparison {
	cmp := model.Comparison{
		A:     a.EIN,
		B:     b.EIN,
		Delta: a.Composite - b.Composite,
	}

	for _, sa := range a.SubScores {
		sb := b.SubScore(sa.Factor)
		cmp.Factors = append(cmp.Factors, model.FactorDelta{
			Factor:        sa.Factor,
			A:             sa.Score,
			B:             sb.Score,
			Delta:         sa.Score - sb.Score,
			WeightedDelta: sa.Contribution - sb.Contribution,
		})
	}

	winner, loser := a, b
	switch {
	case cmp.Delta > 0:
		cmp.Favored = a.EIN
	case cmp.Delta < 0:
		cmp.Favored = b.EIN
		winner, loser = b, a
	default:
		cmp.Summary = fmt.Sprintf("%s and %s score equally overall", a.Name, b.Name)
		return cmp
	}

	if loser.Composite > 0 {
		pct := math.Abs(cmp.Delta) / loser.Composite * 100
		cmp.Summary = fmt.Sprintf("%s scores %.0f%% higher overall", winner.Name, pct)
	} else {
		cmp.Summary = fmt.Sprintf("%s scores higher overall", winner.Name)
	}
	return cmp
}

// CompareProfiles scores a and b together and compares them. It fails with
// model.ErrInvalidProfile when either profile is excluded.
func (e *Engine) CompareProfiles(ctx context.Context, a, b model.RawProfile, opts Options) (model.Comparison, error) {
	einA, err := normalize.CanonicalEIN(a.EIN)
	if err != nil {
		return model.Comparison{}, eris.Wrap(err, "ranking: compare first profile")
	}
	einB, err := normalize.CanonicalEIN(b.EIN)
	if err != nil {
		return model.Comparison{}, eris.Wrap(err, "ranking: compare second profile")
	}
	if einA == einB {
		return model.Comparison{}, eris.Wrapf(model.ErrInvalidProfile, "ranking: cannot compare %s with itself", einA)
	}

	res, err := e.Rank(ctx, []model.RawProfile{a, b}, opts)
	if err != nil {
		return model.Comparison{}, err
	}
	ca, okA := res.Find(einA)
	cb, okB := res.Find(einB)
	if !okA || !okB {
		return model.Comparison{}, eris.Wrap(model.ErrInvalidProfile, "ranking: compare candidate excluded")
	}
	return Compare(*ca, *cb), nil
}
