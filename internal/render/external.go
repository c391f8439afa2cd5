package render

import (
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
	"github.com/John-Robertt/rulesync/internal/rules"
)

// RenderExternal converts a fetched rule-provider list into a sing-box
// rule-set. The list shape is chosen by behavior:
//
//   - domain:    one domain per entry, "+." prefix stripped, all domain_suffix
//   - ipcidr:    one CIDR per entry, verbatim
//   - classical: TYPE,VALUE[,...] entries under "payload:", mapped per type
//
// ErrNothingToEmit is returned when no entry is usable.
func RenderExternal(behavior model.Behavior, text string) (string, error) {
	b := buckets{}
	switch behavior {
	case model.BehaviorDomain:
		for _, e := range listEntries(text, false) {
			if d := strings.TrimPrefix(e, "+."); d != "" {
				b.add(FieldDomainSuffix, d)
			}
		}
	case model.BehaviorIPCIDR:
		for _, e := range listEntries(text, false) {
			b.add(FieldIPCIDR, e)
		}
	default:
		for _, e := range listEntries(text, true) {
			l := rules.ParseLine(e)
			if !l.IsRule() || l.Value == "" {
				continue
			}
			if field, ok := SingboxField(l.Type); ok {
				b.add(field, l.Value)
			}
		}
	}
	return encodeRuleSet(b.rules(externalFieldOrder))
}

// listEntries returns the non-empty, non-comment entries of a provider list,
// accepting both the plain text format and the YAML "payload:" format (list
// prefix and quotes stripped). With afterMarker, entries before a
// "payload:" line are ignored when such a line exists.
func listEntries(text string, afterMarker bool) []string {
	lines := rules.SplitLines(text)
	if afterMarker {
		for i, raw := range lines {
			if strings.TrimSpace(raw) == clashPayloadHeader {
				lines = lines[i+1:]
				break
			}
		}
	}

	out := make([]string, 0, len(lines))
	for _, raw := range lines {
		s := strings.TrimSpace(raw)
		if s == "" || s == clashPayloadHeader || strings.HasPrefix(s, "#") || strings.HasPrefix(s, "//") {
			continue
		}
		if rest, ok := strings.CutPrefix(s, "-"); ok {
			s = strings.TrimSpace(rest)
		}
		s = unquote(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
