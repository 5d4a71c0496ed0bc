// Package normalize maps raw, provider-shaped records into the
// canonical Model schema through best-effort pattern matching.
//
// Source adapters return untyped records; this package owns every
// assumption about their shapes. A record that cannot produce at least
// a name is malformed and reported as an error so the caller can skip
// it and continue the batch.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/corralhq/corral/internal/domain/model"
)

// ErrMalformedRecord marks records that cannot be normalized.
var ErrMalformedRecord = errors.New("malformed source record")

// Normalize maps one raw record from the named source catalog into the
// canonical schema.
func Normalize(raw map[string]any, source string) (model.Model, error) {
	if raw == nil {
		return model.Model{}, fmt.Errorf("%w: nil record", ErrMalformedRecord)
	}

	name := firstString(raw, "name", "modelId", "model_id", "id")
	provider := firstString(raw, "provider", "author", "creator", "organization", "owner")
	if provider == "" {
		if creator, ok := raw["creator"].(map[string]any); ok {
			provider = firstString(creator, "username", "name")
		}
	}

	// HuggingFace ids are "author/name"; split when nothing better exists.
	if strings.Contains(name, "/") && provider == "" {
		parts := strings.SplitN(name, "/", 2)
		provider, name = parts[0], parts[1]
	}
	if strings.TrimSpace(name) == "" {
		return model.Model{}, fmt.Errorf("%w: missing name", ErrMalformedRecord)
	}

	m := model.Model{
		ID:          recordID(raw, source, name, provider),
		Name:        name,
		Provider:    provider,
		Source:      source,
		URL:         firstString(raw, "url", "link", "page_url"),
		Repo:        firstString(raw, "repo", "repository", "repo_url"),
		Description: firstString(raw, "description", "summary"),
		Parameters:  firstString(raw, "parameters", "parameter_count", "size"),
		Domain:      inferDomain(raw),
		Tags:        cleanTags(rawTags(raw)),
		License:     inferLicense(firstString(raw, "license", "license_name", "licence")),
		Hosting:     inferHosting(raw, source),
		Pricing:     inferPricing(raw),
		Downloads:   downloads(raw),
		ReleaseDate: isoDate(firstString(raw, "release_date", "createdAt", "created_at", "publishedAt")),
		UpdatedAt:   isoDate(firstString(raw, "updated_at", "updatedAt", "lastModified", "last_modified")),
	}

	// Provenance entry for this origin.
	m.SourceStats = map[string]model.SourceStat{
		source: {Downloads: m.Downloads, UpdatedAt: m.UpdatedAt},
	}

	return m, nil
}

// recordID builds a stable id: the source plus its native id when one
// exists, otherwise a slug of provider and name.
func recordID(raw map[string]any, source, name, provider string) string {
	if native := firstString(raw, "id", "model_id", "modelId", "uuid"); native != "" {
		return source + ":" + native
	}
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(provider+" "+name), " ", "-"))
	return source + ":" + slug
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

func rawTags(raw map[string]any) []string {
	list, ok := raw["tags"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			// Civitai wraps tags as {name: "..."}.
			if n := firstString(t, "name", "tag"); n != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[strings.ToLower(t)]; dup {
			continue
		}
		seen[strings.ToLower(t)] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func downloads(raw map[string]any) *int64 {
	for _, k := range []string{"downloads", "downloadCount", "download_count"} {
		if v, ok := raw[k].(float64); ok {
			n := int64(v)
			return &n
		}
		if v, ok := raw[k].(int); ok {
			n := int64(v)
			return &n
		}
	}
	if stats, ok := raw["stats"].(map[string]any); ok {
		return downloads(stats)
	}
	return nil
}

// isoDate keeps the value only when it parses as a date we recognize,
// truncated to the date part for consistency across catalogs.
func isoDate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// inferDomain maps pipeline tags and model types onto catalog domains.
func inferDomain(raw map[string]any) model.Domain {
	kind := strings.ToLower(firstString(raw, "pipeline_tag", "pipelineTag", "type", "modality", "category"))
	switch {
	case kind == "":
		return ""
	case strings.Contains(kind, "image") || kind == "checkpoint" || kind == "lora" ||
		kind == "textualinversion" || kind == "controlnet" || strings.Contains(kind, "diffusion"):
		return model.DomainImage
	case strings.Contains(kind, "video"):
		return model.DomainVideo
	case strings.Contains(kind, "audio") || strings.Contains(kind, "speech") || strings.Contains(kind, "music"):
		return model.DomainAudio
	case strings.Contains(kind, "embedding") || strings.Contains(kind, "feature-extraction") ||
		strings.Contains(kind, "sentence-similarity"):
		return model.DomainEmbedding
	case strings.Contains(kind, "multimodal") || strings.Contains(kind, "any-to-any"):
		return model.DomainMultimodal
	case strings.Contains(kind, "text") || strings.Contains(kind, "translation") ||
		strings.Contains(kind, "summarization") || strings.Contains(kind, "conversational"):
		return model.DomainText
	default:
		return model.DomainOther
	}
}

// inferLicense classifies a license string into a coarse legal family.
func inferLicense(name string) model.License {
	if name == "" {
		return model.License{}
	}
	lower := strings.ToLower(name)
	lic := model.License{Name: name}
	yes, no := true, false

	switch {
	case containsAny(lower, "mit", "apache", "bsd", "isc", "unlicense"):
		lic.Type = model.LicenseOSI
		lic.CommercialUse = &yes
		lic.Copyleft = &no
	case containsAny(lower, "agpl", "gpl", "mpl", "lgpl", "cc-by-sa", "sharealike"):
		lic.Type = model.LicenseCopyleft
		lic.Copyleft = &yes
		lic.ShareAlike = &yes
	// "nc" only counts as a bounded token ("cc-by-nc", "nc-sa"), never
	// as a bare substring, which would catch words like "licence".
	case lower == "nc" || containsAny(lower, "-nc", "nc-", "non-commercial", "noncommercial", "non commercial", "research only"):
		lic.Type = model.LicenseNonCommercial
		lic.CommercialUse = &no
	case containsAny(lower, "openrail", "rail", "llama", "gemma", "community", "custom"):
		lic.Type = model.LicenseCustom
	case containsAny(lower, "proprietary", "commercial", "all rights reserved"):
		lic.Type = model.LicenseProprietary
	default:
		lic.Type = model.LicenseCustom
	}
	if containsAny(lower, "cc-by", "attribution", "apache") {
		lic.AttributionRequired = &yes
	}
	return lic
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// inferHosting derives hosting flags from the record and its origin.
// Weights catalogs distribute downloadable artifacts by construction.
func inferHosting(raw map[string]any, source string) model.Hosting {
	var h model.Hosting
	yes := true

	switch strings.ToLower(source) {
	case "huggingface", "civitai", "tensorart":
		h.WeightsAvailable = &yes
		h.OnPremiseFriendly = &yes
	}
	if v, ok := raw["api_available"].(bool); ok {
		h.APIAvailable = &v
	}
	if v, ok := raw["weights_available"].(bool); ok {
		h.WeightsAvailable = &v
	}
	return h
}

// inferPricing extracts a pricing table when the record carries one.
func inferPricing(raw map[string]any) []model.PricingEntry {
	list, ok := raw["pricing"].([]any)
	if !ok {
		return nil
	}
	out := make([]model.PricingEntry, 0, len(list))
	for _, v := range list {
		row, ok := v.(map[string]any)
		if !ok {
			continue
		}
		entry := model.PricingEntry{
			Unit:     firstString(row, "unit"),
			Currency: firstString(row, "currency"),
		}
		if f, ok := row["input_per_unit"].(float64); ok {
			entry.InputPerUnit = &f
		}
		if f, ok := row["output_per_unit"].(float64); ok {
			entry.OutputPerUnit = &f
		}
		if f, ok := row["flat"].(float64); ok {
			entry.Flat = &f
		}
		if entry != (model.PricingEntry{}) {
			out = append(out, entry)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
