package models

import "time"

// Scopes for the two protected Fabric services. A credential issued for one
// scope is never presented to the other.
const (
	ScopeAnalytics = "https://analysis.windows.net/powerbi/api/.default"
	ScopeSQL       = "https://database.windows.net/.default"
)

// StalenessMargin is the safety window before expiry inside which a
// credential is refreshed rather than handed out.
const StalenessMargin = 5 * time.Minute

// Credential is a bearer token for a single protected-resource scope.
type Credential struct {
	Scope      string    `json:"scope" yaml:"scope"`
	Token      string    `json:"token" yaml:"token"`
	Expiry     time.Time `json:"expiry" yaml:"expiry"`
	AcquiredAt time.Time `json:"acquired_at" yaml:"acquired_at"`
}

// IsStale reports whether the credential is within the staleness margin of
// its expiry, or past it.
func (c Credential) IsStale() bool {
	return c.IsStaleAt(time.Now())
}

func (c Credential) IsStaleAt(now time.Time) bool {
	return !now.Add(StalenessMargin).Before(c.Expiry)
}
