package ranking

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/mission"
	"github.com/sells-group/nonprofit-ranker/internal/roi"
)

// Settings is one immutable snapshot of everything that shapes a ranking.
type Settings struct {
	Weights Weights
	Mission *mission.Config
	ROI     roi.Config
	// Workers bounds concurrent candidate scoring; 0 means GOMAXPROCS.
	Workers int
}

// DefaultSettings returns the built-in weights, mission document, and ROI
// configuration.
func DefaultSettings() Settings {
	return Settings{
		Weights: DefaultWeights(),
		Mission: mission.DefaultConfig(),
		ROI:     roi.DefaultConfig(),
	}
}

// SettingsFromConfig builds a snapshot from loaded configuration. The
// mission document is read from cfg.Mission.ConfigPath when set.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	s := DefaultSettings()
	if len(cfg.Ranking.Weights) > 0 {
		s.Weights = WeightsFromMap(cfg.Ranking.Weights, DefaultFactors())
	}
	s.Workers = cfg.Ranking.Workers

	if cfg.Mission.ConfigPath != "" {
		mc, err := mission.LoadConfig(cfg.Mission.ConfigPath)
		if err != nil {
			return Settings{}, eris.Wrap(err, "ranking: load mission config")
		}
		s.Mission = mc
	}

	rc, err := roi.FromConfig(cfg.ROI)
	if err != nil {
		return Settings{}, eris.Wrap(err, "ranking: roi config")
	}
	s.ROI = rc
	return s, nil
}

// Validate checks the snapshot against a factor registry.
func (s Settings) Validate(factors []Factor) error {
	if err := s.Weights.Validate(factors); err != nil {
		return err
	}
	if s.Mission == nil {
		return eris.New("ranking: mission config is required")
	}
	if err := s.Mission.Validate(); err != nil {
		return err
	}
	if err := s.ROI.Validate(); err != nil {
		return err
	}
	if s.Workers < 0 {
		return eris.Errorf("ranking: workers must be >= 0, got %d", s.Workers)
	}
	return nil
}

// Hash fingerprints the snapshot so persisted runs can be matched to the
// settings that produced them.
func (s Settings) Hash() string {
	doc := struct {
		Weights Weights    `json:"weights"`
		Mission string     `json:"mission"`
		ROI     roi.Config `json:"roi"`
	}{Weights: s.Weights, ROI: s.ROI}
	if s.Mission != nil {
		doc.Mission = s.Mission.Hash()
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SettingsHolder publishes the current settings snapshot. Readers take one
// snapshot per ranking; Replace swaps in a new one atomically. Engines built
// on the holder register their factors with it, so the holder and every
// engine validate weights against the same registry.
type SettingsHolder struct {
	mu      sync.Mutex
	factors []Factor
	current atomic.Pointer[Settings]
}

// NewSettingsHolder validates s against factors (the default registry when
// none are given) and returns a holder publishing it.
func NewSettingsHolder(s Settings, factors ...Factor) (*SettingsHolder, error) {
	if len(factors) == 0 {
		factors = DefaultFactors()
	}
	h := &SettingsHolder{factors: append([]Factor(nil), factors...)}
	if err := h.Replace(s); err != nil {
		return nil, err
	}
	return h, nil
}

// Load returns the current snapshot.
func (h *SettingsHolder) Load() Settings {
	return *h.current.Load()
}

// Factors returns the holder's factor registry.
func (h *SettingsHolder) Factors() []Factor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Factor(nil), h.factors...)
}

// register adds factors not yet known to the registry.
func (h *SettingsHolder) register(factors ...Factor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, f := range factors {
		known := false
		for _, have := range h.factors {
			if have.Name == f.Name {
				known = true
				break
			}
		}
		if !known {
			h.factors = append(h.factors, f)
		}
	}
}

// Replace validates s and publishes it. An invalid snapshot leaves the
// current one in place.
func (h *SettingsHolder) Replace(s Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := s.Validate(h.factors); err != nil {
		return err
	}
	s.Weights = append(Weights(nil), s.Weights...)
	h.current.Store(&s)
	return nil
}
