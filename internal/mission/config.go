// Package mission scores how well a nonprofit's mission aligns with a
// sponsor's mission document.
package mission

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// Keyword group names, in scan order.
const (
	GroupPrimary   = "primary"
	GroupSecondary = "secondary"
	GroupTertiary  = "tertiary"
)

// Keyword is a weighted mission term. Multi-word terms match as a phrase.
type Keyword struct {
	Term   string  `yaml:"term" json:"term"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// KeywordGroup is a named, ordered list of keywords.
type KeywordGroup struct {
	Name     string    `yaml:"name" json:"name"`
	Keywords []Keyword `yaml:"keywords" json:"keywords"`
}

// Category is a weighted service category. Subcategories are alternate
// tags that count toward the category.
type Category struct {
	Name          model.ServiceCategory `yaml:"name" json:"name"`
	Weight        float64               `yaml:"weight" json:"weight"`
	Subcategories []string              `yaml:"subcategories,omitempty" json:"subcategories,omitempty"`
}

// Blend holds the relative weights of the three mission sub-scores.
type Blend struct {
	Keyword  float64 `yaml:"keyword" json:"keyword"`
	Category float64 `yaml:"category" json:"category"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
}

// Config is the sponsor's mission document. Treat a validated Config as
// read-only; it is shared by every scoring task of a run.
type Config struct {
	Sponsor    string         `yaml:"sponsor" json:"sponsor"`
	Reference  string         `yaml:"reference" json:"reference"`
	Keywords   []KeywordGroup `yaml:"keywords" json:"keywords"`
	Categories []Category     `yaml:"categories" json:"categories"`
	Blend      Blend          `yaml:"blend" json:"blend"`
}

// DefaultBlend returns the default keyword/category/semantic blend.
func DefaultBlend() Blend {
	return Blend{Keyword: 0.4, Category: 0.3, Semantic: 0.3}
}

// DefaultConfig returns a disaster-response mission document.
func DefaultConfig() *Config {
	return &Config{
		Sponsor: "American Red Cross",
		Reference: "Prevent and alleviate human suffering in the face of emergencies by mobilizing " +
			"the power of volunteers and the generosity of donors. Provide disaster relief, " +
			"emergency shelter, blood donation, health and safety training, and support for " +
			"military families and international humanitarian aid.",
		Keywords: []KeywordGroup{
			{Name: GroupPrimary, Keywords: []Keyword{
				{Term: "disaster relief", Weight: 1.0},
				{Term: "emergency response", Weight: 1.0},
				{Term: "blood donation", Weight: 1.0},
				{Term: "humanitarian", Weight: 1.0},
				{Term: "emergency shelter", Weight: 1.0},
			}},
			{Name: GroupSecondary, Keywords: []Keyword{
				{Term: "first aid", Weight: 0.7},
				{Term: "cpr", Weight: 0.7},
				{Term: "disaster preparedness", Weight: 0.7},
				{Term: "volunteer", Weight: 0.7},
				{Term: "military families", Weight: 0.7},
			}},
			{Name: GroupTertiary, Keywords: []Keyword{
				{Term: "community", Weight: 0.3},
				{Term: "health", Weight: 0.3},
				{Term: "safety", Weight: 0.3},
				{Term: "education", Weight: 0.3},
				{Term: "food", Weight: 0.3},
			}},
		},
		Categories: []Category{
			{Name: model.CategoryDisasterServices, Weight: 0.30, Subcategories: []string{"emergency_shelter", "disaster_relief", "emergency_response"}},
			{Name: model.CategoryHealthSafety, Weight: 0.20, Subcategories: []string{"first_aid", "cpr_training", "water_safety"}},
			{Name: model.CategoryBloodServices, Weight: 0.20, Subcategories: []string{"blood_donation", "blood_drives"}},
			{Name: model.CategorySupportServices, Weight: 0.15, Subcategories: []string{"military_families", "veterans", "food_assistance"}},
			{Name: model.CategoryTrainingEducation, Weight: 0.10, Subcategories: []string{"preparedness_education", "youth_programs"}},
			{Name: model.CategoryInternationalServices, Weight: 0.05, Subcategories: []string{"international_aid", "family_tracing"}},
		},
		Blend: DefaultBlend(),
	}
}

// LoadConfig reads a mission document from a YAML file. An empty blend
// takes the default. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mission: read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a YAML mission document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "mission: parse config")
	}
	if cfg.Blend == (Blend{}) {
		cfg.Blend = DefaultBlend()
	}
	for i := range cfg.Categories {
		cfg.Categories[i].Name = model.ServiceCategory(canonicalTag(string(cfg.Categories[i].Name)))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the document is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	seenGroups := make(map[string]bool)
	for _, g := range c.Keywords {
		if g.Name == "" {
			errs = append(errs, "keyword group name is required")
		} else if seenGroups[g.Name] {
			errs = append(errs, fmt.Sprintf("duplicate keyword group %q", g.Name))
		}
		seenGroups[g.Name] = true
		for _, k := range g.Keywords {
			if len(tokenize(k.Term)) == 0 {
				errs = append(errs, fmt.Sprintf("keyword in group %q has no terms", g.Name))
			}
			if k.Weight < 0 || math.IsNaN(k.Weight) {
				errs = append(errs, fmt.Sprintf("keyword %q weight must be >= 0", k.Term))
			}
		}
	}

	seenCats := make(map[model.ServiceCategory]bool)
	for _, cat := range c.Categories {
		if cat.Name == "" {
			errs = append(errs, "category name is required")
		} else if seenCats[cat.Name] {
			errs = append(errs, fmt.Sprintf("duplicate category %q", cat.Name))
		}
		seenCats[cat.Name] = true
		if cat.Weight < 0 || math.IsNaN(cat.Weight) {
			errs = append(errs, fmt.Sprintf("category %q weight must be >= 0", cat.Name))
		}
	}

	b := c.Blend
	if b.Keyword < 0 || b.Category < 0 || b.Semantic < 0 {
		errs = append(errs, "blend weights must be >= 0")
	}
	if sum := b.Keyword + b.Category + b.Semantic; math.IsNaN(sum) || math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("blend weights should sum to 1, got %.3f", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("mission: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MaxKeywordWeight is the sum of every configured keyword weight.
func (c *Config) MaxKeywordWeight() float64 {
	var sum float64
	for _, g := range c.Keywords {
		for _, k := range g.Keywords {
			sum += k.Weight
		}
	}
	return sum
}

// Hash returns a stable fingerprint of the document.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func canonicalTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
