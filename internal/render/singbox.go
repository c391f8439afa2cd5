package render

import (
	"bytes"
	"slices"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/rulesync/internal/model"
	"github.com/John-Robertt/rulesync/internal/rules"
)

const singboxRuleSetVersion = 2

type ruleSetDocument struct {
	Version int   `json:"version"`
	Rules   []any `json:"rules"`
}

// headlessRule is a single-field sing-box headless rule: {"domain": [...]}.
type headlessRule map[string][]string

type logicalRule struct {
	Type  string         `json:"type"`
	Mode  string         `json:"mode"`
	Rules []headlessRule `json:"rules"`
}

// buckets accumulates values per headless rule field.
type buckets map[string][]string

func (b buckets) add(field, value string) {
	b[field] = append(b[field], value)
}

// rules emits one headless rule per non-empty field in the given order, with
// values deduplicated and sorted.
func (b buckets) rules(order []string) []any {
	out := make([]any, 0, len(b))
	for _, field := range order {
		values := b[field]
		if len(values) == 0 {
			continue
		}
		values = slices.Clone(values)
		slices.Sort(values)
		out = append(out, headlessRule{field: slices.Compact(values)})
	}
	return out
}

// RenderSingbox renders a sing-box headless rule-set (version 2).
//
// Values of the same type share one rule object; AND rules become logical
// rules appended after all buckets. ErrNothingToEmit is returned when the
// source has neither.
func RenderSingbox(lines []model.Line) (string, error) {
	b := buckets{}
	var logical []any

	for _, l := range lines {
		if !l.IsRule() {
			continue
		}

		switch l.Type {
		case "AND":
			if lr, ok := singboxLogicalAnd(l.Raw); ok {
				logical = append(logical, lr)
			}
			continue
		case "DOMAIN-WILDCARD":
			if l.Value != "" {
				b.add(FieldDomainRegex, rules.WildcardToRegex(l.Value))
			}
			continue
		}

		field, ok := SingboxField(l.Type)
		if !ok || l.Value == "" {
			continue
		}
		b.add(field, l.Value)
	}

	return encodeRuleSet(append(b.rules(singboxFieldOrder), logical...))
}

// singboxLogicalAnd keeps only members with a sing-box field and requires at
// least two of them; a composite that degrades to one condition is dropped.
func singboxLogicalAnd(raw string) (logicalRule, bool) {
	subs, ok := rules.ParseComposite(raw)
	if !ok {
		return logicalRule{}, false
	}
	nested := make([]headlessRule, 0, len(subs))
	for _, s := range subs {
		field, ok := SingboxField(s.Type)
		if !ok {
			continue
		}
		nested = append(nested, headlessRule{field: {s.Value}})
	}
	if len(nested) < 2 {
		return logicalRule{}, false
	}
	return logicalRule{Type: "logical", Mode: "and", Rules: nested}, true
}

func encodeRuleSet(items []any) (string, error) {
	if len(items) == 0 {
		return "", ErrNothingToEmit
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ruleSetDocument{Version: singboxRuleSetVersion, Rules: items}); err != nil {
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "RENDER_FAILED",
				Message: "sing-box rule-set 编码失败",
				Stage:   "render",
			},
			Cause: err,
		}
	}
	return buf.String(), nil
}
