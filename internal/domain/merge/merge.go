// Package merge reconciles canonical catalog records into a single set
// without duplication or data loss.
//
// The engine owns every write path into the stored model set: sync
// results, imports and validation results all flow through Merge so the
// fill-missing-fields policy applies uniformly.
package merge

import (
	"reflect"
	"time"

	"github.com/corralhq/corral/internal/domain/identity"
	"github.com/corralhq/corral/internal/domain/model"
)

// Outcome classifies what happened to one identity key during a merge.
type Outcome string

// Per-key merge outcomes.
const (
	OutcomeAdded     Outcome = "added"
	OutcomeUpdated   Outcome = "updated"
	OutcomeDuplicate Outcome = "duplicate"
)

// Report summarizes a merge. Dispositions maps identity keys to their
// outcome so multi-batch passes can combine reports without double
// counting a model that was added by one source and updated by another.
type Report struct {
	Added        int
	Updated      int
	Duplicates   int
	Dispositions map[string]Outcome
}

// Combine folds a later report into this one. A key added earlier and
// updated later counts once, as updated; a duplicate never downgrades
// an earlier add or update.
func (r *Report) Combine(next Report) {
	if r.Dispositions == nil {
		r.Dispositions = make(map[string]Outcome)
	}
	for key, out := range next.Dispositions {
		prev, seen := r.Dispositions[key]
		switch {
		case !seen:
			r.Dispositions[key] = out
		case prev == OutcomeAdded && out == OutcomeUpdated:
			r.Dispositions[key] = OutcomeUpdated
		case prev == OutcomeDuplicate && out != OutcomeDuplicate:
			r.Dispositions[key] = out
		}
	}
	r.recount()
}

// recount rebuilds the counters from the disposition map.
func (r *Report) recount() {
	r.Added, r.Updated, r.Duplicates = 0, 0, 0
	for _, out := range r.Dispositions {
		switch out {
		case OutcomeAdded:
			r.Added++
		case OutcomeUpdated:
			r.Updated++
		case OutcomeDuplicate:
			r.Duplicates++
		}
	}
}

// Engine merges incoming batches into an existing record set.
type Engine struct {
	authoritative bool
}

// New constructs an Engine with default ingestion semantics: existing
// non-empty fields are never overwritten by incoming values.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge reconciles incoming records against existing ones.
//
// Matching uses identity.Key. On a match, fields merge with
// fill-missing-fields semantics (or incoming-wins when the engine is
// authoritative), tags union, source_stats accumulate per origin, user
// and safety state carry forward from the existing record, and
// updated_at becomes the later timestamp. Unmatched records insert as
// new. Same-key records within one batch collapse first, later fields
// winning, so a repeated key never overrides what the existing set
// already holds.
//
// Merge never mutates its inputs and is idempotent: applying the same
// batch twice yields the same set and zero additional adds.
func (e *Engine) Merge(existing, incoming []model.Model) ([]model.Model, Report) {
	merged := make([]model.Model, len(existing))
	index := make(map[string]int, len(existing))
	for i, m := range existing {
		merged[i] = m.Clone()
		index[identity.Key(m)] = i
	}

	report := Report{Dispositions: make(map[string]Outcome)}

	for _, in := range e.collapseBatch(incoming) {
		key := identity.Key(in)

		pos, found := index[key]
		if !found {
			merged = append(merged, in)
			index[key] = len(merged) - 1
			report.Dispositions[key] = OutcomeAdded
			continue
		}

		before := merged[pos]
		after := e.mergeOne(before, in, false)
		merged[pos] = after

		if !reflect.DeepEqual(before, after) {
			report.Dispositions[key] = OutcomeUpdated
		} else {
			report.Dispositions[key] = OutcomeDuplicate
		}
	}

	report.recount()
	return merged, report
}

// collapseBatch folds same-key records within one batch down to one
// record per key, in first-appearance order. Later records win at the
// field level among themselves, keeping the last-write-within-batch
// contract confined to the batch.
func (e *Engine) collapseBatch(incoming []model.Model) []model.Model {
	out := make([]model.Model, 0, len(incoming))
	index := make(map[string]int, len(incoming))

	for _, in := range incoming {
		in = sanitizePricing(in.Clone())
		key := identity.Key(in)

		pos, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, in)
			continue
		}
		out[pos] = e.mergeOne(out[pos], in, true)
	}
	return out
}

// mergeOne folds one incoming record into its existing match. When
// overwrite is set (engine is authoritative, or the incoming record is
// a later same-key record from the same batch), non-empty incoming
// fields win; otherwise existing non-empty fields are kept.
func (e *Engine) mergeOne(existing, in model.Model, overwrite bool) model.Model {
	auth := e.authoritative || overwrite
	out := existing.Clone()

	out.Name = pickString(auth, existing.Name, in.Name)
	out.Provider = pickString(auth, existing.Provider, in.Provider)
	out.URL = pickString(auth, existing.URL, in.URL)
	out.Repo = pickString(auth, existing.Repo, in.Repo)
	out.Description = pickString(auth, existing.Description, in.Description)
	out.Parameters = pickString(auth, existing.Parameters, in.Parameters)
	out.ReleaseDate = pickString(auth, existing.ReleaseDate, in.ReleaseDate)
	if string(existing.Domain) == "" || (auth && string(in.Domain) != "") {
		if string(in.Domain) != "" {
			out.Domain = in.Domain
		}
	}

	// The stored record keeps its id; a new source never renames it.
	out.ID = existing.ID
	if out.ID == "" {
		out.ID = in.ID
	}
	// Source reflects the first catalog that contributed the record.
	out.Source = pickString(false, existing.Source, in.Source)

	out.License = mergeLicense(auth, existing.License, in.License)
	out.Hosting = mergeHosting(auth, existing.Hosting, in.Hosting)

	out.Downloads = pickInt64(auth, existing.Downloads, in.Downloads)
	if len(existing.Pricing) == 0 || (auth && len(in.Pricing) > 0) {
		if len(in.Pricing) > 0 {
			out.Pricing = clonePricing(in.Pricing)
		}
	}

	out.Tags = unionTags(existing.Tags, in.Tags)
	out.UpdatedAt = laterDate(existing.UpdatedAt, in.UpdatedAt)

	// Sticky user and safety state: carried forward unconditionally.
	// Safety rescans and user toggles write through their own paths.
	out.IsFavorite = existing.IsFavorite
	out.IsNSFWFlagged = existing.IsNSFWFlagged
	out.FlaggedImageURLs = append([]string(nil), existing.FlaggedImageURLs...)

	// Provenance accumulates one entry per origin catalog.
	if len(in.SourceStats) > 0 {
		if out.SourceStats == nil {
			out.SourceStats = make(map[string]model.SourceStat, len(in.SourceStats))
		}
		for origin, stat := range in.SourceStats {
			out.SourceStats[origin] = stat
		}
	}

	return sanitizePricing(out)
}

func pickString(auth bool, existing, in string) string {
	if auth && in != "" {
		return in
	}
	if existing != "" {
		return existing
	}
	return in
}

func pickBool(auth bool, existing, in *bool) *bool {
	if auth && in != nil {
		return in
	}
	if existing != nil {
		return existing
	}
	return in
}

func pickInt64(auth bool, existing, in *int64) *int64 {
	if auth && in != nil {
		return in
	}
	if existing != nil {
		return existing
	}
	return in
}

func mergeLicense(auth bool, existing, in model.License) model.License {
	out := existing
	out.Name = pickString(auth, existing.Name, in.Name)
	if string(existing.Type) == "" || (auth && string(in.Type) != "") {
		if string(in.Type) != "" {
			out.Type = in.Type
		}
	}
	out.CommercialUse = pickBool(auth, existing.CommercialUse, in.CommercialUse)
	out.AttributionRequired = pickBool(auth, existing.AttributionRequired, in.AttributionRequired)
	out.ShareAlike = pickBool(auth, existing.ShareAlike, in.ShareAlike)
	out.Copyleft = pickBool(auth, existing.Copyleft, in.Copyleft)
	return out
}

func mergeHosting(auth bool, existing, in model.Hosting) model.Hosting {
	var out model.Hosting
	out.WeightsAvailable = pickBool(auth, existing.WeightsAvailable, in.WeightsAvailable)
	out.APIAvailable = pickBool(auth, existing.APIAvailable, in.APIAvailable)
	out.OnPremiseFriendly = pickBool(auth, existing.OnPremiseFriendly, in.OnPremiseFriendly)
	return out
}

// unionTags unions tag sets, preserving existing order and appending
// unseen incoming tags in their order of arrival.
func unionTags(existing, in []string) []string {
	if len(in) == 0 {
		return append([]string(nil), existing...)
	}
	seen := make(map[string]struct{}, len(existing)+len(in))
	out := make([]string, 0, len(existing)+len(in))
	for _, t := range existing {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range in {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// laterDate returns the later of two ISO date strings, tolerating
// missing or unparseable values by preferring whichever parses.
func laterDate(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	ta, errA := parseISO(a)
	tb, errB := parseISO(b)
	switch {
	case errA != nil && errB != nil:
		return a
	case errA != nil:
		return b
	case errB != nil:
		return a
	case tb.After(ta):
		return b
	default:
		return a
	}
}

func parseISO(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: s}
}

// sanitizePricing drops flat subscription prices from API-shaped
// pricing entries so usage pricing is never mislabeled as a
// subscription.
func sanitizePricing(m model.Model) model.Model {
	for i, p := range m.Pricing {
		if p.Flat != nil && p.IsAPIShaped() {
			m.Pricing[i].Flat = nil
		}
	}
	return m
}

func clonePricing(in []model.PricingEntry) []model.PricingEntry {
	out := make([]model.PricingEntry, len(in))
	copy(out, in)
	return out
}
