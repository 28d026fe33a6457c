package admission

import "time"

// Well-known policy names recognised in configuration.
const (
	PolicyAuth      = "auth"
	PolicyPublicAPI = "publicApi"
	PolicyUpload    = "upload"
	PolicyPerTenant = "perTenant"
	PolicyAdmin     = "admin"
)

// Policy is one named window/quota pair. FailClosed controls the behaviour
// when the backing store is unreachable: authentication endpoints reject so
// an outage cannot become a brute-force amplifier, everything else admits.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	FailClosed  bool
}

// PolicySet holds the configured policies by name.
type PolicySet map[string]Policy

// DefaultPolicies returns the built-in window/quota pairs. Configuration
// overrides individual entries.
func DefaultPolicies() PolicySet {
	return PolicySet{
		PolicyAuth:      {Name: PolicyAuth, MaxRequests: 10, Window: time.Minute, FailClosed: true},
		PolicyPublicAPI: {Name: PolicyPublicAPI, MaxRequests: 120, Window: time.Minute},
		PolicyUpload:    {Name: PolicyUpload, MaxRequests: 20, Window: time.Minute},
		PolicyPerTenant: {Name: PolicyPerTenant, MaxRequests: 600, Window: time.Minute},
		PolicyAdmin:     {Name: PolicyAdmin, MaxRequests: 30, Window: time.Minute},
	}
}

// Get returns the named policy, falling back to the default set.
func (s PolicySet) Get(name string) Policy {
	if policy, ok := s[name]; ok {
		return policy
	}
	return DefaultPolicies()[name]
}

// Override replaces quota and window for a named policy, keeping its
// failure mode.
func (s PolicySet) Override(name string, maxRequests int, window time.Duration) {
	policy := s.Get(name)
	if maxRequests > 0 {
		policy.MaxRequests = maxRequests
	}
	if window > 0 {
		policy.Window = window
	}
	s[name] = policy
}
