// Package ranking combines mission alignment, partnership ROI, and
// profile-derived factors into one explainable ranking of candidates.
package ranking

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nonprofit-ranker/internal/embed"
	"github.com/sells-group/nonprofit-ranker/internal/mission"
	"github.com/sells-group/nonprofit-ranker/internal/model"
	"github.com/sells-group/nonprofit-ranker/internal/normalize"
	"github.com/sells-group/nonprofit-ranker/internal/roi"
)

// RationaleSize is the number of reasons attached to each candidate.
const RationaleSize = 3

// Exclusion reasons.
const (
	ExcludedInvalid   = "invalid profile"
	ExcludedDuplicate = "duplicate ein"
)

// Options are per-invocation inputs.
type Options struct {
	Context roi.PartnershipContext `json:"context"`
}

// Result is the output of one ranking. It carries no timestamps so equal
// inputs produce equal results.
type Result struct {
	Candidates []model.RankedCandidate `json:"candidates"`
	Excluded   []model.Exclusion       `json:"excluded,omitempty"`
	ConfigHash string                  `json:"config_hash"`
}

// Find returns the candidate with the given EIN. The EIN may be given in
// any form CanonicalEIN accepts.
func (r *Result) Find(ein string) (*model.RankedCandidate, bool) {
	if canonical, err := normalize.CanonicalEIN(ein); err == nil {
		ein = canonical
	}
	for i := range r.Candidates {
		if r.Candidates[i].EIN == ein {
			return &r.Candidates[i], true
		}
	}
	return nil, false
}

// Observer receives run-level outcomes.
type Observer interface {
	RunCompleted(res *Result, elapsed time.Duration)
	RunFailed(err error, elapsed time.Duration)
}

// Engine ranks candidates against the current settings snapshot. It holds
// no per-run state and is safe for concurrent use.
type Engine struct {
	settings *SettingsHolder
	embedder embed.Embedder
	factors  []Factor
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithFactor appends a factor to the registry. A weight must be configured
// for it before it contributes to the composite.
func WithFactor(f Factor) Option {
	return func(e *Engine) {
		for _, have := range e.factors {
			if have.Name == f.Name {
				return
			}
		}
		e.factors = append(e.factors, f)
	}
}

// WithObserver reports run outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine returns an engine reading settings from holder. The engine
// starts from the holder's factor registry, and factors added with
// WithFactor are registered back with the holder. embedder may be nil, in
// which case semantic similarity is always degraded.
func NewEngine(holder *SettingsHolder, embedder embed.Embedder, opts ...Option) *Engine {
	e := &Engine{
		settings: holder,
		embedder: embedder,
		factors:  holder.Factors(),
	}
	for _, opt := range opts {
		opt(e)
	}
	holder.register(e.factors...)
	return e
}

// Factors returns the engine's factor registry.
func (e *Engine) Factors() []Factor {
	return append([]Factor(nil), e.factors...)
}

// Settings returns the current settings snapshot.
func (e *Engine) Settings() Settings {
	return e.settings.Load()
}

// Rank normalizes and scores raws, then orders them by composite score.
// Weights are validated before any candidate is scored. Invalid profiles
// and repeated EINs are excluded rather than failing the run. Only
// cancellation of ctx fails a run once scoring has started.
func (e *Engine) Rank(ctx context.Context, raws []model.RawProfile, opts Options) (*Result, error) {
	start := time.Now()
	res, err := e.rank(ctx, raws, opts)
	if e.observer != nil {
		if err != nil {
			e.observer.RunFailed(err, time.Since(start))
		} else {
			e.observer.RunCompleted(res, time.Since(start))
		}
	}
	return res, err
}

// slot is one candidate's output. Each worker writes only its own slot.
type slot struct {
	candidate model.RankedCandidate
	excluded  *model.Exclusion
}

func (e *Engine) rank(ctx context.Context, raws []model.RawProfile, opts Options) (*Result, error) {
	s := e.settings.Load()
	if err := s.Weights.Validate(e.factors); err != nil {
		return nil, err
	}
	calc, err := roi.NewCalculator(s.ROI)
	if err != nil {
		return nil, eris.Wrap(err, "ranking: roi calculator")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ranking: canceled before scoring")
	}

	log := zap.L().With(zap.Int("candidates", len(raws)))
	log.Info("ranking: run started")

	scorer := mission.Prepare(ctx, s.Mission, e.embedder)

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	slots := make([]slot, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range raws {
		g.Go(func() error {
			out, err := e.scoreOne(gctx, scorer, calc, s.Weights, raws[i], opts.Context)
			if err != nil {
				return err
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "ranking: scoring canceled")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "ranking: scoring canceled")
	}

	res := &Result{ConfigHash: s.Hash()}
	seen := make(map[string]bool, len(slots))
	for _, sl := range slots {
		if sl.excluded != nil {
			log.Warn("ranking: candidate excluded",
				zap.String("ein", sl.excluded.EIN),
				zap.String("reason", sl.excluded.Reason))
			res.Excluded = append(res.Excluded, *sl.excluded)
			continue
		}
		c := sl.candidate
		if seen[c.EIN] {
			log.Warn("ranking: duplicate candidate excluded", zap.String("ein", c.EIN))
			res.Excluded = append(res.Excluded, model.Exclusion{EIN: c.EIN, Name: c.Name, Reason: ExcludedDuplicate})
			continue
		}
		seen[c.EIN] = true
		res.Candidates = append(res.Candidates, c)
	}

	sortCandidates(res.Candidates)
	for i := range res.Candidates {
		res.Candidates[i].Rank = i + 1
	}

	log.Info("ranking: run finished",
		zap.Int("ranked", len(res.Candidates)),
		zap.Int("excluded", len(res.Excluded)))
	return res, nil
}

// scoreOne normalizes and scores a single candidate. The only error it
// returns is cancellation of ctx; invalid profiles become exclusions.
func (e *Engine) scoreOne(
	ctx context.Context,
	scorer *mission.Scorer,
	calc *roi.Calculator,
	weights Weights,
	raw model.RawProfile,
	pctx roi.PartnershipContext,
) (slot, error) {
	p, quality, err := normalize.Normalize(raw)
	if err != nil {
		if eris.Is(err, model.ErrInvalidProfile) {
			return slot{excluded: &model.Exclusion{
				EIN:    raw.EIN,
				Name:   raw.Name,
				Reason: ExcludedInvalid + ": " + err.Error(),
			}}, nil
		}
		return slot{}, err
	}

	mb, err := scorer.Score(ctx, &p)
	if err != nil {
		return slot{}, err
	}
	overlap := mission.CategoryOverlap(scorer.Config(), &p)
	rb := calc.Calculate(&p, overlap, pctx)

	return slot{candidate: e.assemble(&Scored{Profile: &p, Quality: quality, Mission: mb, ROI: rb}, weights)}, nil
}

// assemble evaluates every registered factor and builds the candidate.
func (e *Engine) assemble(sc *Scored, weights Weights) model.RankedCandidate {
	c := model.RankedCandidate{
		EIN:     sc.Profile.EIN,
		Name:    sc.Profile.Name,
		Mission: sc.Mission,
		ROI:     sc.ROI,
		Quality: sc.Quality,
	}

	// Every fallback is also recorded on the data-quality report.
	c.Quality.Degradations = append([]model.Degradation(nil), sc.Quality.Degradations...)
	c.Quality.Degrade(sc.Mission.Degradations...)
	c.Quality.Degrade(sc.ROI.Degradations...)

	reasons := make([]model.Reason, 0, len(e.factors))
	var composite float64
	for _, f := range e.factors {
		fs := f.Score(sc)
		value := clamp01(fs.Value)
		w := weights.Of(f.Name)
		sub := model.SubScore{Factor: f.Name, Score: value, Weight: w, Contribution: w * value}
		c.SubScores = append(c.SubScores, sub)
		composite += sub.Contribution
		reasons = append(reasons, model.Reason{Factor: f.Name, Contribution: sub.Contribution, Detail: fs.Detail})
		c.Quality.Degrade(fs.Degradations...)
	}

	c.Composite = clamp01(composite)
	c.Degradations = append([]model.Degradation(nil), c.Quality.Degradations...)
	c.Degraded = len(c.Degradations) > 0
	c.Rationale = topReasons(reasons, RationaleSize)
	return c
}

// topReasons returns the n largest contributions, ties kept in registry
// order.
func topReasons(reasons []model.Reason, n int) []model.Reason {
	sorted := append([]model.Reason(nil), reasons...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Contribution > sorted[j].Contribution
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// sortCandidates orders by composite desc, mission alignment desc, EIN asc.
func sortCandidates(cs []model.RankedCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.Mission.Alignment != b.Mission.Alignment {
			return a.Mission.Alignment > b.Mission.Alignment
		}
		return a.EIN < b.EIN
	})
}

// TopPartners returns up to n candidates whose composite is at least
// minScore, in rank order. n <= 0 means no limit.
func TopPartners(res *Result, n int, minScore float64) []model.RankedCandidate {
	var out []model.RankedCandidate
	for _, c := range res.Candidates {
		if c.Composite < minScore {
			continue
		}
		out = append(out, c)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}
