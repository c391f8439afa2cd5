package rules

import (
	"regexp"
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
)

var (
	andEnvelope  = regexp.MustCompile(`^AND,\(\((.+)\)\)$`)
	subSeparator = regexp.MustCompile(`\),\s*\(`)
)

// ParseComposite decodes AND,((T1,V1), (T2,V2), ...) into its members.
//
// ok is false when the line is not an AND envelope or no member survived.
// Members are split on "), (" without any escaping, so a value containing
// that sequence breaks the split. Members without a comma are dropped one
// by one; the rest of the composite is kept.
func ParseComposite(raw string) (subs []model.SubRule, ok bool) {
	m := andEnvelope.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil, false
	}

	for _, frag := range subSeparator.Split(m[1], -1) {
		frag = strings.Trim(strings.TrimSpace(frag), "()")
		typ, val, found := strings.Cut(frag, ",")
		if !found {
			continue
		}
		subs = append(subs, model.SubRule{
			Type:  strings.TrimSpace(typ),
			Value: strings.TrimSpace(val),
		})
	}
	if len(subs) == 0 {
		return nil, false
	}
	return subs, true
}
