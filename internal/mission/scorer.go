package mission

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/nonprofit-ranker/internal/embed"
	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/normalize"
)

type compiledKeyword struct {
	term   string
	weight float64
	tokens []string
}

// Scorer computes mission alignment against one Config. It is safe for
// concurrent use; nothing is mutated after Prepare returns.
type Scorer struct {
	cfg       *Config
	embedder  embed.Embedder
	keywords  []compiledKeyword
	maxWeight float64

	reference       []float32
	referenceReason string
}

// Prepare compiles cfg and embeds its reference statement once. A failed
// reference embedding leaves the scorer without a reference vector, and
// every candidate's semantic sub-score is then degraded. embedder may be nil.
func Prepare(ctx context.Context, cfg *Config, embedder embed.Embedder) *Scorer {
	s := &Scorer{cfg: cfg, embedder: embedder, maxWeight: cfg.MaxKeywordWeight()}
	for _, g := range cfg.Keywords {
		for _, k := range g.Keywords {
			s.keywords = append(s.keywords, compiledKeyword{term: k.Term, weight: k.Weight, tokens: tokenize(k.Term)})
		}
	}

	switch {
	case embedder == nil:
		s.referenceReason = model.ReasonEmbeddingUnavailable
	case len(tokenize(cfg.Reference)) == 0:
		s.referenceReason = model.ReasonNoReferenceVector
	default:
		vec, err := embedder.Embed(ctx, cfg.Reference)
		if err != nil {
			zap.L().Warn("mission: reference embedding failed", zap.Error(err))
			s.referenceReason = model.ReasonNoReferenceVector
		} else {
			s.reference = vec
		}
	}
	return s
}

// Config returns the document the scorer was prepared with.
func (s *Scorer) Config() *Config {
	return s.cfg
}

// Score computes the mission breakdown for p. Missing mission text or an
// unavailable embedding degrades the result; only cancellation of ctx is
// returned as an error.
func (s *Scorer) Score(ctx context.Context, p *model.NonprofitProfile) (model.MissionBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return model.MissionBreakdown{}, err
	}

	var b model.MissionBreakdown
	b.CategoryScore, b.MatchedCategories = matchCategories(s.cfg, p)

	tokens := tokenize(p.Mission)
	if len(tokens) == 0 {
		b.Degradations = append(b.Degradations, model.Degradation{
			Factor: model.FactorMission,
			Reason: model.ReasonEmptyMission,
			Detail: "no mission text; keyword and semantic scores are 0",
		})
	} else {
		b.KeywordScore, b.MatchedKeywords = s.matchKeywords(tokens)

		sem, d, err := s.semantic(ctx, p)
		if err != nil {
			return model.MissionBreakdown{}, err
		}
		b.SemanticScore = sem
		if d != nil {
			b.Degradations = append(b.Degradations, *d)
		}
	}

	bl := s.cfg.Blend
	b.Alignment = clamp01(bl.Keyword*b.KeywordScore + bl.Category*b.CategoryScore + bl.Semantic*b.SemanticScore)
	b.Degraded = len(b.Degradations) > 0
	return b, nil
}

// matchKeywords returns the matched weight fraction and the matched terms
// in configuration order. A keyword counts once however often it appears.
func (s *Scorer) matchKeywords(tokens []string) (float64, []string) {
	if s.maxWeight <= 0 {
		return 0, nil
	}
	var sum float64
	var matched []string
	for _, k := range s.keywords {
		if containsSequence(tokens, k.tokens) {
			sum += k.weight
			matched = append(matched, k.term)
		}
	}
	return clamp01(sum / s.maxWeight), matched
}

func (s *Scorer) semantic(ctx context.Context, p *model.NonprofitProfile) (float64, *model.Degradation, error) {
	if s.reference == nil {
		return 0, &model.Degradation{
			Factor: model.FactorMission,
			Reason: s.referenceReason,
			Detail: "reference statement has no embedding",
		}, nil
	}

	vec, err := s.embedder.Embed(ctx, p.Mission)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		reason := model.ReasonEmbeddingUnavailable
		if errors.Is(err, model.ErrCapabilityTimeout) {
			reason = model.ReasonEmbeddingTimeout
		}
		zap.L().Debug("mission: embedding failed",
			zap.String("ein", p.EIN),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return 0, &model.Degradation{Factor: model.FactorMission, Reason: reason, Detail: err.Error()}, nil
	}

	if len(vec) != len(s.reference) {
		return 0, &model.Degradation{
			Factor: model.FactorMission,
			Reason: model.ReasonEmbeddingUnavailable,
			Detail: "embedding dimension mismatch",
		}, nil
	}
	return clamp01(Cosine(vec, s.reference)), nil, nil
}

// CategoryOverlap returns the weighted fraction of cfg's categories that p
// declares. It reads only its arguments.
func CategoryOverlap(cfg *Config, p *model.NonprofitProfile) float64 {
	score, _ := matchCategories(cfg, p)
	return score
}

func matchCategories(cfg *Config, p *model.NonprofitProfile) (float64, []model.ServiceCategory) {
	var total, matched float64
	var names []model.ServiceCategory
	for _, cat := range cfg.Categories {
		total += cat.Weight
		if declares(p, cat) {
			matched += cat.Weight
			names = append(names, cat.Name)
		}
	}
	if total <= 0 {
		return 0, names
	}
	return clamp01(matched / total), names
}

func declares(p *model.NonprofitProfile, cat Category) bool {
	if p.HasCategory(cat.Name) {
		return true
	}
	for _, sub := range cat.Subcategories {
		if p.HasCategory(model.ServiceCategory(canonicalTag(sub))) {
			return true
		}
	}
	return false
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Label buckets an alignment score for display.
func Label(alignment float64) string {
	switch {
	case alignment > 0.8:
		return "strong"
	case alignment > 0.6:
		return "good"
	case alignment > 0.4:
		return "moderate"
	default:
		return "limited"
	}
}

func tokenize(s string) []string {
	return normalize.Tokens(s)
}

func containsSequence(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(seq) <= len(tokens); i++ {
		for j := range seq {
			if tokens[i+j] != seq[j] {
				continue outer
			}
		}
		return true
	}
	return false
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
