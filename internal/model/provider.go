package model

// Behavior selects how a fetched external list is decoded.
type Behavior string

const (
	BehaviorDomain    Behavior = "domain"
	BehaviorIPCIDR    Behavior = "ipcidr"
	BehaviorClassical Behavior = "classical"
)

// ParseBehavior maps a manifest behavior tag to a Behavior.
// Anything that is not domain/ipcidr falls back to classical.
func ParseBehavior(s string) Behavior {
	switch Behavior(s) {
	case BehaviorDomain:
		return BehaviorDomain
	case BehaviorIPCIDR:
		return BehaviorIPCIDR
	default:
		return BehaviorClassical
	}
}

// Provider is one externally hosted rule list from the provider manifest.
type Provider struct {
	Name     string
	URL      string
	Behavior Behavior
}
