package seeder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/corralhq/corral/internal/domain/model"
)

// Name part pools for synthetic catalog records. Deterministic for a
// fixed seed so runs are reproducible.
var (
	namePrefixes = []string{
		"Nova", "Quartz", "Cobalt", "Juniper", "Meridian", "Halcyon",
		"Vector", "Aurora", "Basalt", "Cinder", "Drift", "Ember",
	}
	nameSuffixes = []string{
		"LM", "Diffusion", "Vision", "Coder", "Chat", "Embed",
		"Audio", "XL", "Mini", "Turbo", "Instruct", "Base",
	}
	providers = []string{
		"acme-labs", "northwind-ai", "contoso-research", "umbrella-ml",
		"initech", "globex", "wayne-deep", "stark-models",
	}
	domains = []model.Domain{
		model.DomainText, model.DomainImage, model.DomainAudio,
		model.DomainEmbedding, model.DomainMultimodal,
	}
	tagPool = []string{
		"llm", "chat", "code", "vision", "fast", "quantized",
		"instruct", "fine-tuned", "multilingual", "open-weights",
	}
	licenses = []string{"apache-2.0", "mit", "agpl-3.0", "cc-by-nc-4.0", "openrail"}
	paramss  = []string{"1B", "3B", "7B", "13B", "34B", "70B"}
)

// Generator produces synthetic models for seeding runs.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator with a deterministic seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // deterministic seed for reproducible seeding
}

// Generate produces n synthetic catalog records. Roughly one in ten
// shares an identity with an earlier record so merge paths get hit.
func (g *Generator) Generate(n int) []model.Model {
	out := make([]model.Model, 0, n)
	for i := 0; i < n; i++ {
		if len(out) > 0 && g.rng.Intn(10) == 0 {
			// Re-emit an earlier identity with different details.
			twin := out[g.rng.Intn(len(out))]
			out = append(out, g.variant(twin))
			continue
		}
		out = append(out, g.fresh(i))
	}
	return out
}

func (g *Generator) fresh(i int) model.Model {
	name := fmt.Sprintf("%s %s %d",
		namePrefixes[g.rng.Intn(len(namePrefixes))],
		nameSuffixes[g.rng.Intn(len(nameSuffixes))],
		i,
	)
	provider := providers[g.rng.Intn(len(providers))]
	downloads := int64(g.rng.Intn(1_000_000))
	updated := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, g.rng.Intn(400)).Format("2006-01-02")

	return model.Model{
		ID:          fmt.Sprintf("seed:%s-%d", provider, i),
		Name:        name,
		Provider:    provider,
		Source:      "seed",
		Domain:      domains[g.rng.Intn(len(domains))],
		Tags:        g.tags(),
		Parameters:  paramss[g.rng.Intn(len(paramss))],
		License:     model.License{Name: licenses[g.rng.Intn(len(licenses))]},
		Downloads:   &downloads,
		UpdatedAt:   updated,
		Description: fmt.Sprintf("Synthetic catalog record for %s.", name),
	}
}

// variant re-emits base's identity with a later update and different
// details, exercising the fill and update merge paths server side.
func (g *Generator) variant(base model.Model) model.Model {
	v := base.Clone()
	v.ID = base.ID + "-v2"
	v.Description = ""
	v.Parameters = ""
	downloads := int64(g.rng.Intn(2_000_000))
	v.Downloads = &downloads
	v.UpdatedAt = "2026-06-01"
	return v
}

func (g *Generator) tags() []string {
	n := 1 + g.rng.Intn(4)
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for len(out) < n {
		t := tagPool[g.rng.Intn(len(tagPool))]
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
