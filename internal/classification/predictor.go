package classification

import (
	"math"
	"sort"
	"strings"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
)

// Scoring constants.
const (
	keywordHit      = 1.0
	leadingHitBonus = 0.35
	baseConfidence  = 0.55
	bestWeight      = 0.12
	runnerUpPenalty = 0.07
	minConfidence   = 0.2
	maxConfidence   = 0.98
)

// AliasLookup resolves a normalized note to a learned subcategory.
type AliasLookup func(normalized string) (subcategory string, ok bool)

// Predictor scores notes against a taxonomy.
type Predictor struct {
	tax *taxonomy.Taxonomy
}

// NewPredictor creates a predictor over tax.
func NewPredictor(tax *taxonomy.Taxonomy) *Predictor {
	return &Predictor{tax: tax}
}

// Taxonomy returns the taxonomy the predictor scores against.
func (p *Predictor) Taxonomy() *taxonomy.Taxonomy {
	return p.tax
}

// Predict returns the best subcategory for note, or nil when nothing matches.
// A known alias returned by lookup wins over keyword scoring. lookup may be nil.
func (p *Predictor) Predict(note string, lookup AliasLookup) *model.Prediction {
	return p.PredictNormalized(Normalize(note), lookup)
}

// PredictNormalized is Predict for text that has already been normalized.
func (p *Predictor) PredictNormalized(normalized string, lookup AliasLookup) *model.Prediction {
	if normalized == "" {
		return nil
	}

	if lookup != nil {
		if sub, ok := lookup(normalized); ok {
			if parent := p.tax.ParentOf(sub); parent != "" {
				return &model.Prediction{
					Category:    parent,
					Subcategory: sub,
					Confidence:  model.AliasConfidence,
					Reason:      model.ReasonAlias,
				}
			}
		}
	}

	candidates := p.score(normalized)
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	second := 0.0
	if len(candidates) > 1 {
		second = candidates[1].score
	}

	return &model.Prediction{
		Category:    best.sub.Category,
		Subcategory: best.sub.Key,
		Confidence:  Confidence(best.score, second),
		Reason:      model.ReasonRules,
	}
}

type candidate struct {
	sub   taxonomy.Subcategory
	score float64
}

// score returns the matching subcategories, best first. Candidates are
// collected in declaration order so the stable sort keeps the earlier one
// on equal scores.
func (p *Predictor) score(normalized string) []candidate {
	var candidates []candidate
	for _, sub := range p.tax.Subcategories() {
		total := 0.0
		for _, kw := range sub.Keywords {
			if kw == "" || !strings.Contains(normalized, kw) {
				continue
			}
			total += keywordHit
			if normalized == kw || strings.HasPrefix(normalized, kw+" ") {
				total += leadingHitBonus
			}
		}
		if total > 0 {
			candidates = append(candidates, candidate{sub: sub, score: total})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	return candidates
}

// Confidence maps the top two scores to a confidence in [0.2, 0.98],
// rounded to two decimals.
func Confidence(best, second float64) float64 {
	c := baseConfidence + best*bestWeight - second*runnerUpPenalty
	c = math.Min(maxConfidence, c)
	c = math.Max(minConfidence, c)
	return math.Round(c*100) / 100
}
