// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Domain categorizes what a model produces or operates on.
type Domain string

// Known model domains.
const (
	DomainText       Domain = "text"
	DomainImage      Domain = "image"
	DomainVideo      Domain = "video"
	DomainAudio      Domain = "audio"
	DomainEmbedding  Domain = "embedding"
	DomainMultimodal Domain = "multimodal"
	DomainOther      Domain = "other"
)

// LicenseType classifies a license into coarse legal families.
type LicenseType string

// License families.
const (
	LicenseOSI           LicenseType = "OSI"
	LicenseCopyleft      LicenseType = "Copyleft"
	LicenseNonCommercial LicenseType = "Non-Commercial"
	LicenseCustom        LicenseType = "Custom"
	LicenseProprietary   LicenseType = "Proprietary"
)

// License captures licensing terms for a model. The boolean flags are
// tri-state: nil means unknown, which readers treat as false.
type License struct {
	Name                string      `json:"name,omitempty"`
	Type                LicenseType `json:"type,omitempty"`
	CommercialUse       *bool       `json:"commercial_use,omitempty"`
	AttributionRequired *bool       `json:"attribution_required,omitempty"`
	ShareAlike          *bool       `json:"share_alike,omitempty"`
	Copyleft            *bool       `json:"copyleft,omitempty"`
}

// Hosting describes how a model can be consumed. Tri-state like License.
type Hosting struct {
	WeightsAvailable  *bool `json:"weights_available,omitempty"`
	APIAvailable      *bool `json:"api_available,omitempty"`
	OnPremiseFriendly *bool `json:"on_premise_friendly,omitempty"`
}

// PricingEntry is one row of a model's pricing table.
type PricingEntry struct {
	Unit          string   `json:"unit,omitempty"`
	InputPerUnit  *float64 `json:"input_per_unit,omitempty"`
	OutputPerUnit *float64 `json:"output_per_unit,omitempty"`
	Flat          *float64 `json:"flat,omitempty"`
	Currency      string   `json:"currency,omitempty"`
}

// apiUnitMarkers identify usage-style pricing units.
var apiUnitMarkers = []string{"token", "request", "call"}

// IsAPIShaped reports whether the unit describes usage pricing
// (per-token, per-request, per-call) rather than a subscription.
func (p PricingEntry) IsAPIShaped() bool {
	unit := strings.ToLower(p.Unit)
	for _, marker := range apiUnitMarkers {
		if strings.Contains(unit, marker) {
			return true
		}
	}
	return false
}

// SourceStat records per-origin reconciliation data for audit.
type SourceStat struct {
	Downloads *int64 `json:"downloads,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Model is the canonical catalog entry produced by normalization and
// maintained by the merge engine. ID is unique within the store.
type Model struct {
	// Identity
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
	Source   string `json:"source,omitempty"`
	URL      string `json:"url,omitempty"`
	Repo     string `json:"repo,omitempty"`

	// Classification
	Domain      Domain   `json:"domain,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	Parameters  string   `json:"parameters,omitempty"`

	// Licensing and hosting
	License License `json:"license,omitempty"`
	Hosting Hosting `json:"hosting,omitempty"`

	// Commercial data
	Pricing   []PricingEntry `json:"pricing,omitempty"`
	Downloads *int64         `json:"downloads,omitempty"`

	// Temporal (ISO dates, empty means unknown)
	ReleaseDate string `json:"release_date,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`

	// User and safety state. Sticky across merges: re-ingestion must
	// never silently clear these.
	IsFavorite       bool     `json:"isFavorite"`
	IsNSFWFlagged    bool     `json:"isNSFWFlagged"`
	FlaggedImageURLs []string `json:"flaggedImageUrls,omitempty"`

	// Provenance
	SourceStats map[string]SourceStat `json:"source_stats,omitempty"`
}

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	out.FlaggedImageURLs = append([]string(nil), m.FlaggedImageURLs...)
	out.License.CommercialUse = cloneBool(m.License.CommercialUse)
	out.License.AttributionRequired = cloneBool(m.License.AttributionRequired)
	out.License.ShareAlike = cloneBool(m.License.ShareAlike)
	out.License.Copyleft = cloneBool(m.License.Copyleft)
	out.Hosting.WeightsAvailable = cloneBool(m.Hosting.WeightsAvailable)
	out.Hosting.APIAvailable = cloneBool(m.Hosting.APIAvailable)
	out.Hosting.OnPremiseFriendly = cloneBool(m.Hosting.OnPremiseFriendly)
	out.Downloads = cloneInt64(m.Downloads)
	if m.Pricing != nil {
		out.Pricing = make([]PricingEntry, len(m.Pricing))
		for i, p := range m.Pricing {
			cp := p
			cp.InputPerUnit = cloneFloat64(p.InputPerUnit)
			cp.OutputPerUnit = cloneFloat64(p.OutputPerUnit)
			cp.Flat = cloneFloat64(p.Flat)
			out.Pricing[i] = cp
		}
	}
	if m.SourceStats != nil {
		out.SourceStats = make(map[string]SourceStat, len(m.SourceStats))
		for k, v := range m.SourceStats {
			cv := v
			cv.Downloads = cloneInt64(v.Downloads)
			out.SourceStats[k] = cv
		}
	}
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func cloneFloat64(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// JobStatus is the lifecycle state of a validation job.
type JobStatus string

// Job lifecycle states. Completed, failed and cancelled are terminal.
const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// ValidationSource selects an enrichment strategy for a job.
type ValidationSource string

// Enrichment strategies.
const (
	SourceAPI       ValidationSource = "API"
	SourceWebsearch ValidationSource = "WEBSEARCH"
	SourceScraping  ValidationSource = "SCRAPING"
)

// ValidationJob tracks one model enrichment request through the scheduler.
// Mutated only by the scheduler; disposed only by explicit clear.
type ValidationJob struct {
	ID          string             `json:"id"`
	ModelID     string             `json:"model_id"`
	ModelName   string             `json:"model_name"`
	Sources     []ValidationSource `json:"sources"`
	Status      JobStatus          `json:"status"`
	Attempts    int                `json:"attempts"`
	MaxAttempts int                `json:"max_attempts"`
	Error       string             `json:"error,omitempty"`
	Result      *Model             `json:"result,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
