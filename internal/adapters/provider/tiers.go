package provider

import "time"

// Tier describes the pacing budget an upstream account grants us.
// The scheduler derives its dispatch rate and worker count from it.
type Tier struct {
	Name                 string
	MaxRequestsPerMinute int
	MaxInFlight          int
}

// MinInterval returns the minimum spacing between dispatches that
// keeps the request rate inside the tier budget.
func (t Tier) MinInterval() time.Duration {
	if t.MaxRequestsPerMinute <= 0 {
		return 0
	}
	return time.Minute / time.Duration(t.MaxRequestsPerMinute)
}

var tiers = map[string]Tier{
	"free":  {Name: "free", MaxRequestsPerMinute: 3, MaxInFlight: 1},
	"tier1": {Name: "tier1", MaxRequestsPerMinute: 60, MaxInFlight: 4},
	"tier4": {Name: "tier4", MaxRequestsPerMinute: 600, MaxInFlight: 16},
}

// TierByName returns the named tier, falling back to free for unknown
// names so a typo degrades to the slowest pace rather than the fastest.
func TierByName(name string) Tier {
	if t, ok := tiers[name]; ok {
		return t
	}
	return tiers["free"]
}
