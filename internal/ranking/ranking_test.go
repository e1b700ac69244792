package ranking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/embed"
	"github.com/sells-group/nonprofit-ranker/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

func relief(ein, name string) model.RawProfile {
	return model.RawProfile{
		EIN:        ein,
		Name:       name,
		Mission:    "We provide disaster relief, emergency shelter, and blood donation drives.",
		Programs:   []string{"Shelter", "Blood drives"},
		Categories: []string{"disaster_services", "blood_services"},
		Financials: model.Financials{
			Revenue:             ptrFloat64(2_500_000),
			Expenses:            ptrFloat64(2_000_000),
			Assets:              ptrFloat64(3_000_000),
			Liabilities:         ptrFloat64(1_000_000),
			ProgramExpenses:     ptrFloat64(1_600_000),
			ProgramExpenseRatio: ptrFloat64(0.8),
			RevenueHistory: []model.FiscalYear{
				{Year: 2023, Revenue: 2_500_000},
				{Year: 2021, Revenue: 2_000_000},
				{Year: 2022, Revenue: 2_200_000},
			},
		},
		Capacity: model.Capacity{
			StaffCount:     ptrInt(20),
			VolunteerCount: ptrInt(100),
			YearsActive:    ptrInt(12),
		},
		Location: model.Location{ServiceAreas: []string{"MD"}},
	}
}

func sparse(ein, name string) model.RawProfile {
	return model.RawProfile{EIN: ein, Name: name, Mission: "Community arts for all ages."}
}

func newEngine(t *testing.T, embedder embed.Embedder, opts ...Option) *Engine {
	t.Helper()
	holder, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)
	return NewEngine(holder, embedder, opts...)
}

func TestWeights_Validate(t *testing.T) {
	factors := DefaultFactors()
	require.NoError(t, DefaultWeights().Validate(factors))

	tests := []struct {
		name    string
		weights Weights
		want    string
	}{
		{
			name:    "negative",
			weights: Weights{{model.FactorMission, 1.2}, {model.FactorROI, -0.2}},
			want:    "roi weight must be a finite number >= 0",
		},
		{
			name:    "nan",
			weights: Weights{{model.FactorMission, math.NaN()}},
			want:    "mission weight must be a finite number >= 0",
		},
		{
			name:    "unknown factor",
			weights: Weights{{model.FactorMission, 0.5}, {"goodwill", 0.5}},
			want:    `unknown factor "goodwill"`,
		},
		{
			name:    "duplicate factor",
			weights: Weights{{model.FactorMission, 0.5}, {model.FactorMission, 0.5}},
			want:    `duplicate factor "mission"`,
		},
		{
			name:    "sum too low",
			weights: Weights{{model.FactorMission, 0.5}, {model.FactorROI, 0.4}},
			want:    "weights must sum to 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate(factors)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidWeights))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWeights_WithinTolerance(t *testing.T) {
	ws := DefaultWeights()
	ws[0].Weight += 5e-7
	assert.NoError(t, ws.Validate(DefaultFactors()))
}

func TestWeightsFromMap_RegistryOrder(t *testing.T) {
	ws := WeightsFromMap(map[string]float64{
		"zeta":                         0.1,
		model.FactorDataQuality:        0.1,
		model.FactorMission:            0.5,
		model.FactorROI:                0.2,
		model.FactorFinancialStability: 0.1,
	}, DefaultFactors())

	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Factor
	}
	assert.Equal(t, []string{model.FactorMission, model.FactorROI, model.FactorFinancialStability, model.FactorDataQuality, "zeta"}, names)
	assert.InDelta(t, 0.5, ws.Of(model.FactorMission), 1e-9)
	assert.Zero(t, ws.Of(model.FactorOrganizationalCapacity))
}

func extraFactor() Factor {
	return Factor{Name: "extra", Score: func(*Scored) FactorScore { return FactorScore{Value: 1} }}
}

func weightsWithExtra() Weights {
	return Weights{
		{model.FactorMission, 0.3},
		{model.FactorROI, 0.2},
		{model.FactorFinancialStability, 0.15},
		{model.FactorOrganizationalCapacity, 0.15},
		{model.FactorDataQuality, 0.1},
		{"extra", 0.1},
	}
}

func TestRank_InvalidWeightsBeforeAnyWork(t *testing.T) {
	holder, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)

	var calls atomic.Int32
	counting := embed.Func(func(context.Context, string) ([]float32, error) {
		calls.Add(1)
		return []float32{1, 0}, nil
	})

	// plain was built before the extra factor was registered, so it does
	// not know it.
	plain := NewEngine(holder, counting)
	withExtra := NewEngine(holder, counting, WithFactor(extraFactor()))

	settings := DefaultSettings()
	settings.Weights = weightsWithExtra()
	require.NoError(t, holder.Replace(settings))

	res, err := plain.Rank(context.Background(), []model.RawProfile{relief("12-3456789", "A")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidWeights)
	assert.Nil(t, res)
	assert.Zero(t, calls.Load(), "no embedding before weights are validated")

	res, err = withExtra.Rank(context.Background(), []model.RawProfile{relief("12-3456789", "A")}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.InDelta(t, 0.1, res.Candidates[0].SubScore("extra").Contribution, 1e-9)
}

func TestNewEngine_RegistersFactorsWithHolder(t *testing.T) {
	holder, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)

	settings := DefaultSettings()
	settings.Weights = weightsWithExtra()
	assert.ErrorIs(t, holder.Replace(settings), model.ErrInvalidWeights)

	e := NewEngine(holder, nil, WithFactor(extraFactor()), WithFactor(extraFactor()))
	require.Len(t, e.Factors(), len(DefaultFactors())+1)
	require.Len(t, holder.Factors(), len(DefaultFactors())+1)

	require.NoError(t, holder.Replace(settings))
	res, err := e.Rank(context.Background(), []model.RawProfile{relief("12-3456789", "A")}, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.Candidates[0].SubScore("extra").Contribution, 1e-9)

	// A holder created with the extra factor hands it to engines built on it.
	seeded, err := NewSettingsHolder(settings, append(DefaultFactors(), extraFactor())...)
	require.NoError(t, err)
	assert.Len(t, NewEngine(seeded, nil).Factors(), len(DefaultFactors())+1)
}

func TestRank_CompositeBounded(t *testing.T) {
	e := newEngine(t, embed.NewHashing(128))
	raws := []model.RawProfile{
		relief("11-1111111", "Harbor Relief"),
		sparse("22-2222222", "Arts Collective"),
		{EIN: "333333333"},
	}

	res, err := e.Rank(context.Background(), raws, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)

	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Composite, 0.0)
		assert.LessOrEqual(t, c.Composite, 1.0)

		var sum float64
		for _, s := range c.SubScores {
			assert.GreaterOrEqual(t, s.Score, 0.0)
			assert.LessOrEqual(t, s.Score, 1.0)
			assert.InDelta(t, s.Weight*s.Score, s.Contribution, 1e-12)
			sum += s.Contribution
		}
		assert.InDelta(t, sum, c.Composite, 1e-9)
		require.Len(t, c.SubScores, 5)
		assert.Equal(t, model.FactorMission, c.SubScores[0].Factor)
		assert.Equal(t, model.FactorDataQuality, c.SubScores[4].Factor)
	}

	assert.Equal(t, "11-1111111", res.Candidates[0].EIN)
	for i, c := range res.Candidates {
		assert.Equal(t, i+1, c.Rank)
	}
	assert.NotEmpty(t, res.ConfigHash)
}

func TestRank_Deterministic(t *testing.T) {
	raws := []model.RawProfile{
		relief("11-1111111", "Harbor Relief"),
		sparse("22-2222222", "Arts Collective"),
		relief("44-4444444", "Bay Relief"),
		{EIN: "55-5555555", Name: "Fifth", Mission: "First aid and CPR training for volunteers"},
	}

	settings := DefaultSettings()
	settings.Workers = 1
	serial, err := NewSettingsHolder(settings)
	require.NoError(t, err)
	settings.Workers = 8
	parallel, err := NewSettingsHolder(settings)
	require.NoError(t, err)

	a, err := NewEngine(serial, embed.NewHashing(64)).Rank(context.Background(), raws, Options{})
	require.NoError(t, err)
	b, err := NewEngine(parallel, embed.NewHashing(64)).Rank(context.Background(), raws, Options{})
	require.NoError(t, err)

	assert.Equal(t, a.Candidates, b.Candidates)
	assert.Equal(t, a.Excluded, b.Excluded)
}

func TestRank_TieBreakByEIN(t *testing.T) {
	e := newEngine(t, nil)
	raws := []model.RawProfile{
		relief("99-9999999", "Zeta Relief"),
		relief("10-0000000", "Alpha Relief"),
	}

	res, err := e.Rank(context.Background(), raws, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.Equal(t, res.Candidates[0].Composite, res.Candidates[1].Composite)
	assert.Equal(t, "10-0000000", res.Candidates[0].EIN)
	assert.Equal(t, "99-9999999", res.Candidates[1].EIN)
}

func TestSortCandidates_MissionBreaksCompositeTie(t *testing.T) {
	cs := []model.RankedCandidate{
		{EIN: "10-0000000", Composite: 0.6, Mission: model.MissionBreakdown{Alignment: 0.2}},
		{EIN: "20-0000000", Composite: 0.6, Mission: model.MissionBreakdown{Alignment: 0.9}},
		{EIN: "30-0000000", Composite: 0.7},
	}
	sortCandidates(cs)
	assert.Equal(t, "30-0000000", cs[0].EIN)
	assert.Equal(t, "20-0000000", cs[1].EIN)
	assert.Equal(t, "10-0000000", cs[2].EIN)
}

func TestRank_AllFinancialsAbsent(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Rank(context.Background(), []model.RawProfile{sparse("12-3456789", "Sparse")}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.InDelta(t, 0.5, c.SubScore(model.FactorFinancialStability).Score, 1e-9)
	assert.True(t, c.Degraded)

	var financial int
	for _, d := range c.Degradations {
		if d.Factor == model.FactorFinancialStability {
			financial++
			assert.Equal(t, model.ReasonMissingInput, d.Reason)
		}
	}
	assert.Equal(t, 3, financial)
	assert.True(t, c.ROI.Degraded)
}

func TestRank_QualityReportCarriesDegradations(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Rank(context.Background(), []model.RawProfile{{EIN: "12-3456789", Name: "Bare"}}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Zero(t, c.Quality.Completeness)
	require.NotEmpty(t, c.Quality.Degradations)
	assert.Equal(t, c.Degradations, c.Quality.Degradations)

	byFactor := make(map[string]int)
	for _, d := range c.Quality.Degradations {
		byFactor[d.Factor]++
	}
	for _, d := range c.ROI.Degradations {
		assert.Contains(t, c.Quality.Degradations, d)
	}
	assert.Equal(t, len(c.ROI.Degradations), byFactor[model.ROIResourceSharing]+byFactor[model.ROICostSavings]+
		byFactor[model.ROIImpactMultiplier]+byFactor[model.ROIReachExpansion])
	assert.Equal(t, 3, byFactor[model.FactorFinancialStability])
	assert.Positive(t, byFactor[model.FactorOrganizationalCapacity])
	assert.Positive(t, byFactor[model.FactorMission])
}

func TestDataQuality_CountsExpectedFieldsOnly(t *testing.T) {
	present := model.FieldSet{}
	for _, f := range model.ExpectedFields {
		present[f] = true
	}
	present[model.FieldAdminExpenses] = true
	present[model.FieldRevenueHistory] = true

	n := len(model.ExpectedFields)
	full := dataQuality(&Scored{Quality: model.DataQualityReport{Completeness: 1, Present: present.Sorted()}})
	assert.Equal(t, fmt.Sprintf("%d of %d expected fields present", n, n), full.Detail)

	partial := dataQuality(&Scored{Quality: model.DataQualityReport{
		Present: []model.Field{model.FieldMission, model.FieldAdminExpenses},
		Missing: model.ExpectedFields[1:],
	}})
	assert.Equal(t, fmt.Sprintf("1 of %d expected fields present", n), partial.Detail)
}

func TestRank_ExcludesInvalidAndDuplicates(t *testing.T) {
	e := newEngine(t, nil)
	raws := []model.RawProfile{
		relief("12-3456789", "First"),
		{EIN: "not-an-ein", Name: "Broken"},
		relief("123456789", "Second copy"),
		{Name: "No EIN"},
	}

	res, err := e.Rank(context.Background(), raws, Options{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "First", res.Candidates[0].Name)

	require.Len(t, res.Excluded, 3)
	assert.Equal(t, "Broken", res.Excluded[0].Name)
	assert.Contains(t, res.Excluded[0].Reason, ExcludedInvalid)
	assert.Equal(t, model.Exclusion{EIN: "12-3456789", Name: "Second copy", Reason: ExcludedDuplicate}, res.Excluded[1])
	assert.Equal(t, "No EIN", res.Excluded[2].Name)
}

func TestRank_Canceled(t *testing.T) {
	e := newEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Rank(ctx, []model.RawProfile{relief("12-3456789", "A")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRank_CanceledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	embedder := embed.Func(func(ctx context.Context, _ string) ([]float32, error) {
		if calls.Add(1) == 1 {
			return []float32{1, 0}, nil
		}
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	e := newEngine(t, embedder)

	res, err := e.Rank(ctx, []model.RawProfile{relief("11-1111111", "A"), relief("22-2222222", "B")}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRank_Rationale(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Rank(context.Background(), []model.RawProfile{relief("12-3456789", "A")}, Options{})
	require.NoError(t, err)

	c := res.Candidates[0]
	require.Len(t, c.Rationale, RationaleSize)
	for i := 1; i < len(c.Rationale); i++ {
		assert.GreaterOrEqual(t, c.Rationale[i-1].Contribution, c.Rationale[i].Contribution)
	}
	for _, r := range c.Rationale {
		assert.NotEmpty(t, r.Detail)
	}
}

func TestTopReasons_TiesKeepRegistryOrder(t *testing.T) {
	reasons := []model.Reason{
		{Factor: "a", Contribution: 0.1},
		{Factor: "b", Contribution: 0.2},
		{Factor: "c", Contribution: 0.1},
		{Factor: "d", Contribution: 0.1},
	}
	top := topReasons(reasons, 3)
	assert.Equal(t, "b", top[0].Factor)
	assert.Equal(t, "a", top[1].Factor)
	assert.Equal(t, "c", top[2].Factor)
}

func TestFinancialStability(t *testing.T) {
	p := &model.NonprofitProfile{Financials: model.Financials{
		Revenue:             ptrFloat64(2_500_000),
		Assets:              ptrFloat64(3_000_000),
		Liabilities:         ptrFloat64(1_000_000),
		ProgramExpenseRatio: ptrFloat64(0.8),
	}}
	fs := financialStability(&Scored{Profile: p})
	assert.InDelta(t, 0.92, fs.Value, 1e-9)
	assert.Empty(t, fs.Degradations)
	assert.Equal(t, "program ratio 80%, revenue $2,500,000", fs.Detail)

	p.Financials.Liabilities = ptrFloat64(2_000_000)
	assert.InDelta(t, 0.82, financialStability(&Scored{Profile: p}).Value, 1e-9)

	p.Financials.Liabilities = ptrFloat64(0)
	assert.InDelta(t, 0.92, financialStability(&Scored{Profile: p}).Value, 1e-9)
}

func TestOrganizationalCapacity(t *testing.T) {
	p := &model.NonprofitProfile{
		Financials: model.Financials{
			Revenue:             ptrFloat64(2_500_000),
			ProgramExpenseRatio: ptrFloat64(0.8),
			RevenueHistory: []model.FiscalYear{
				{Year: 2021, Revenue: 1_000_000},
				{Year: 2023, Revenue: 1_500_000},
				{Year: 2022, Revenue: 1_200_000},
			},
		},
		Capacity: model.Capacity{StaffCount: ptrInt(20), VolunteerCount: ptrInt(100), YearsActive: ptrInt(12)},
	}
	fs := organizationalCapacity(&Scored{Profile: p})
	// 0.3 base + 0.15 size + 0.1 efficiency + 0.1 growth + 0.07 workforce + 0.1 tenure
	assert.InDelta(t, 0.82, fs.Value, 1e-9)
	assert.Empty(t, fs.Degradations)

	empty := organizationalCapacity(&Scored{Profile: &model.NonprofitProfile{}})
	assert.InDelta(t, 0.65, empty.Value, 1e-9)
	assert.Len(t, empty.Degradations, 5)
}

func TestRevenueGrowing(t *testing.T) {
	_, ok := revenueGrowing([]model.FiscalYear{{Year: 2022, Revenue: 1}, {Year: 2023, Revenue: 2}})
	assert.False(t, ok)

	growing, ok := revenueGrowing([]model.FiscalYear{
		{Year: 2020, Revenue: 10}, {Year: 2021, Revenue: 1}, {Year: 2022, Revenue: 2}, {Year: 2023, Revenue: 2},
	})
	assert.True(t, ok)
	assert.True(t, growing)

	growing, _ = revenueGrowing([]model.FiscalYear{{Year: 2021, Revenue: 3}, {Year: 2022, Revenue: 2}, {Year: 2023, Revenue: 4}})
	assert.False(t, growing)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0", formatMoney(0))
	assert.Equal(t, "999", formatMoney(999))
	assert.Equal(t, "1,000", formatMoney(1000))
	assert.Equal(t, "835,800", formatMoney(835_800))
	assert.Equal(t, "-12,500", formatMoney(-12_500))
}

func candidate(ein, name string, composite float64, subs ...model.SubScore) model.RankedCandidate {
	return model.RankedCandidate{EIN: ein, Name: name, Composite: composite, SubScores: subs}
}

func TestCompare(t *testing.T) {
	a := candidate("11-1111111", "Alpha", 0.72,
		model.SubScore{Factor: model.FactorMission, Score: 0.9, Weight: 0.5, Contribution: 0.45},
		model.SubScore{Factor: model.FactorROI, Score: 0.54, Weight: 0.5, Contribution: 0.27},
	)
	b := candidate("22-2222222", "Beta", 0.58,
		model.SubScore{Factor: model.FactorMission, Score: 0.6, Weight: 0.5, Contribution: 0.30},
		model.SubScore{Factor: model.FactorROI, Score: 0.56, Weight: 0.5, Contribution: 0.28},
	)

	cmp := Compare(a, b)
	assert.InDelta(t, 0.14, cmp.Delta, 1e-9)
	assert.Equal(t, "11-1111111", cmp.Favored)
	assert.Equal(t, "Alpha scores 24% higher overall", cmp.Summary)
	require.Len(t, cmp.Factors, 2)
	assert.InDelta(t, 0.3, cmp.Factors[0].Delta, 1e-9)
	assert.InDelta(t, 0.15, cmp.Factors[0].WeightedDelta, 1e-9)
	assert.InDelta(t, -0.02, cmp.Factors[1].Delta, 1e-9)

	reverse := Compare(b, a)
	assert.InDelta(t, -0.14, reverse.Delta, 1e-9)
	assert.Equal(t, "11-1111111", reverse.Favored)
	assert.Equal(t, "Alpha scores 24% higher overall", reverse.Summary)
}

func TestCompare_EqualAndZero(t *testing.T) {
	cmp := Compare(candidate("11-1111111", "Alpha", 0.5), candidate("22-2222222", "Beta", 0.5))
	assert.Empty(t, cmp.Favored)
	assert.Equal(t, "Alpha and Beta score equally overall", cmp.Summary)

	cmp = Compare(candidate("11-1111111", "Alpha", 0.3), candidate("22-2222222", "Beta", 0))
	assert.Equal(t, "Alpha scores higher overall", cmp.Summary)
}

func TestCompareProfiles(t *testing.T) {
	e := newEngine(t, nil)

	cmp, err := e.CompareProfiles(context.Background(),
		relief("11-1111111", "Harbor Relief"), sparse("22-2222222", "Arts Collective"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "11-1111111", cmp.A)
	assert.Equal(t, "22-2222222", cmp.B)
	assert.Greater(t, cmp.Delta, 0.0)
	assert.Equal(t, "11-1111111", cmp.Favored)
	assert.Len(t, cmp.Factors, 5)

	_, err = e.CompareProfiles(context.Background(),
		relief("11-1111111", "A"), relief("111111111", "B"), Options{})
	assert.ErrorIs(t, err, model.ErrInvalidProfile)

	_, err = e.CompareProfiles(context.Background(),
		relief("11-1111111", "A"), sparse("bad", "B"), Options{})
	assert.ErrorIs(t, err, model.ErrInvalidProfile)
}

func TestTopPartners(t *testing.T) {
	res := &Result{Candidates: []model.RankedCandidate{
		candidate("11-1111111", "A", 0.9),
		candidate("22-2222222", "B", 0.7),
		candidate("33-3333333", "C", 0.4),
	}}

	assert.Len(t, TopPartners(res, 10, 0.5), 2)
	top := TopPartners(res, 1, 0)
	require.Len(t, top, 1)
	assert.Equal(t, "A", top[0].Name)
	assert.Len(t, TopPartners(res, 0, 0), 3)
}

func TestResultFind(t *testing.T) {
	res := &Result{Candidates: []model.RankedCandidate{candidate("12-3456789", "A", 0.5)}}
	c, ok := res.Find("123456789")
	require.True(t, ok)
	assert.Equal(t, "A", c.Name)
	_, ok = res.Find("98-7654321")
	assert.False(t, ok)
}

func TestExplain(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Rank(context.Background(), []model.RawProfile{relief("12-3456789", "Harbor Relief")}, Options{})
	require.NoError(t, err)

	text := Explain(res.Candidates[0])
	assert.Contains(t, text, "Harbor Relief (12-3456789) - Rank #1")
	assert.Contains(t, text, "Mission alignment")
	assert.Contains(t, text, "matched keywords: disaster relief")
	assert.Contains(t, text, "Partnership ROI")
	assert.Contains(t, text, "Financial stability")
	assert.Contains(t, text, "Organizational capacity")
	assert.Contains(t, text, "Top factors")
}

func TestSettingsHolder_ReplaceValidates(t *testing.T) {
	holder, err := NewSettingsHolder(DefaultSettings())
	require.NoError(t, err)
	before := holder.Load().Hash()

	bad := DefaultSettings()
	bad.Weights = Weights{{model.FactorMission, 2}}
	err = holder.Replace(bad)
	assert.ErrorIs(t, err, model.ErrInvalidWeights)
	assert.Equal(t, before, holder.Load().Hash())

	next := DefaultSettings()
	next.Weights = Weights{{model.FactorMission, 0.5}, {model.FactorROI, 0.5}}
	require.NoError(t, holder.Replace(next))
	assert.NotEqual(t, before, holder.Load().Hash())

	_, err = NewSettingsHolder(Settings{Weights: DefaultWeights()})
	assert.Error(t, err)
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{Ranking: config.RankingConfig{
		Weights: map[string]float64{model.FactorMission: 0.6, model.FactorROI: 0.4},
		Workers: 3,
	}}
	s, err := SettingsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, Weights{{model.FactorMission, 0.6}, {model.FactorROI, 0.4}}, s.Weights)
	assert.Equal(t, 3, s.Workers)
	assert.NotNil(t, s.Mission)

	cfg.Mission.ConfigPath = "/does/not/exist.yaml"
	_, err = SettingsFromConfig(cfg)
	assert.Error(t, err)
}

type recordingObserver struct {
	completed atomic.Int32
	failed    atomic.Int32
}

func (o *recordingObserver) RunCompleted(*Result, time.Duration) { o.completed.Add(1) }
func (o *recordingObserver) RunFailed(error, time.Duration)      { o.failed.Add(1) }

func TestRank_Observer(t *testing.T) {
	obs := &recordingObserver{}
	e := newEngine(t, nil, WithObserver(obs))

	_, err := e.Rank(context.Background(), []model.RawProfile{relief("12-3456789", "A")}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Rank(ctx, nil, Options{})
	require.Error(t, err)

	assert.Equal(t, int32(1), obs.completed.Load())
	assert.Equal(t, int32(1), obs.failed.Load())
}
