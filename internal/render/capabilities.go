package render

// Rule types Quantumult X filter lists cannot express. Logical rules and
// wildcard domains are dropped here even though the other targets keep them.
var quanxSkip = map[string]struct{}{
	"USER-AGENT":      {},
	"URL-REGEX":       {},
	"PROCESS-NAME":    {},
	"DOMAIN-WILDCARD": {},
	"AND":             {},
	"OR":              {},
	"NOT":             {},
}

// mihomo understands logical rules and DOMAIN-WILDCARD natively.
var clashSkip = map[string]struct{}{
	"USER-AGENT": {},
	"URL-REGEX":  {},
}

// SkippedRuleTypes returns the rule TYPE deny-list for a line-oriented target.
// sing-box has no deny-list: it keeps only what SingboxField maps.
func SkippedRuleTypes(target Target) map[string]struct{} {
	switch target {
	case TargetQuanx:
		return quanxSkip
	case TargetClash:
		return clashSkip
	default:
		return nil
	}
}

func skipped(target Target, typ string) bool {
	_, ok := SkippedRuleTypes(target)[typ]
	return ok
}

// sing-box headless rule fields.
const (
	FieldDomain        = "domain"
	FieldDomainSuffix  = "domain_suffix"
	FieldDomainKeyword = "domain_keyword"
	FieldDomainRegex   = "domain_regex"
	FieldIPCIDR        = "ip_cidr"
	FieldProcessName   = "process_name"
)

var singboxFields = map[string]string{
	"DOMAIN":         FieldDomain,
	"DOMAIN-SUFFIX":  FieldDomainSuffix,
	"DOMAIN-KEYWORD": FieldDomainKeyword,
	"IP-CIDR":        FieldIPCIDR,
	"IP-CIDR6":       FieldIPCIDR,
	"PROCESS-NAME":   FieldProcessName,
}

// SingboxField maps a Surge rule type to its sing-box headless rule field.
// DOMAIN-WILDCARD is handled separately (translated into domain_regex).
func SingboxField(typ string) (string, bool) {
	f, ok := singboxFields[typ]
	return f, ok
}

// Canonical bucket order of a generated rule-set.
var singboxFieldOrder = []string{
	FieldDomain,
	FieldDomainSuffix,
	FieldDomainKeyword,
	FieldDomainRegex,
	FieldIPCIDR,
	FieldProcessName,
}

// External lists never produce regex or logical rules.
var externalFieldOrder = []string{
	FieldDomain,
	FieldDomainSuffix,
	FieldDomainKeyword,
	FieldIPCIDR,
	FieldProcessName,
}
