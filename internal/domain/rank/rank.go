// Package rank orders catalog entries by popularity so listings show
// the records people actually look for first.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/corralhq/corral/internal/domain/model"
)

// Default ranking configuration constants.
const (
	defaultFavoriteBoost = 25.0
	defaultRecencyBoost  = 15.0
	recencyHorizonDays   = 180.0
	maxScoreValue        = 100.0
)

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithFavoriteBoost sets the score bump a favorited model gets.
func WithFavoriteBoost(boost float64) Option {
	return func(r *Ranker) {
		if boost >= 0 {
			r.favoriteBoost = boost
		}
	}
}

// WithDomainWeights sets per-domain multipliers.
func WithDomainWeights(weights map[model.Domain]float64) Option {
	return func(r *Ranker) {
		r.domainWeights = make(map[model.Domain]float64, len(weights))
		for d, w := range weights {
			if w > 0 {
				r.domainWeights[d] = w
			}
		}
	}
}

// WithNow injects the clock used for recency scoring.
func WithNow(now func() time.Time) Option {
	return func(r *Ranker) {
		if now != nil {
			r.now = now
		}
	}
}

// Ranker computes popularity scores from download counts, update
// recency and user state. Scores are deterministic for a fixed clock.
type Ranker struct {
	favoriteBoost float64
	recencyBoost  float64
	domainWeights map[model.Domain]float64
	now           func() time.Time
}

// New creates a Ranker with configuration options.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		favoriteBoost: defaultFavoriteBoost,
		recencyBoost:  defaultRecencyBoost,
		domainWeights: make(map[model.Domain]float64),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Score computes a popularity score in [0, 100].
//
// Downloads dominate on a log scale so a million-download model does
// not flatten everything else; a recent update adds a decaying boost;
// favorites always float upward.
func (r *Ranker) Score(m model.Model) float64 {
	score := 0.0

	if d := totalDownloads(m); d > 0 {
		// log10(1e7) ~= 7, scaled to roughly 0-60.
		score += math.Min(60, math.Log10(float64(d)+1)*8.5)
	}

	if m.UpdatedAt != "" {
		if t, err := time.Parse("2006-01-02", m.UpdatedAt); err == nil {
			age := r.now().Sub(t).Hours() / 24
			if age >= 0 && age < recencyHorizonDays {
				score += r.recencyBoost * (1 - age/recencyHorizonDays)
			}
		}
	}

	if m.IsFavorite {
		score += r.favoriteBoost
	}

	if w, ok := r.domainWeights[m.Domain]; ok {
		score *= w
	}

	return math.Max(0, math.Min(maxScoreValue, score))
}

// Sort orders models by descending score, breaking ties by name so the
// order is stable across calls.
func (r *Ranker) Sort(models []model.Model) {
	scores := make(map[string]float64, len(models))
	for _, m := range models {
		scores[m.ID] = r.Score(m)
	}
	sort.SliceStable(models, func(i, j int) bool {
		si, sj := scores[models[i].ID], scores[models[j].ID]
		if si != sj {
			return si > sj
		}
		return models[i].Name < models[j].Name
	})
}

// totalDownloads sums the canonical count with per-origin stats,
// preferring the canonical number when both exist.
func totalDownloads(m model.Model) int64 {
	if m.Downloads != nil {
		return *m.Downloads
	}
	var total int64
	for _, stat := range m.SourceStats {
		if stat.Downloads != nil {
			total += *stat.Downloads
		}
	}
	return total
}
