package model

type LineKind int

const (
	LineBlank        LineKind = iota
	LineComment               // "# ..."
	LineSlashComment          // "// ..."
	LineRule
)

// Line is one record of a Surge RULE-SET file.
//
// Fields keeps every comma-separated field (trimmed, original case) so that
// passthrough targets can re-join them; Type and Value are Fields[0] and
// Fields[1] (Value is empty when the line carries only a type tag).
type Line struct {
	Raw    string // trimmed source text
	Kind   LineKind
	Type   string
	Value  string
	Fields []string
}

func (l Line) IsRule() bool { return l.Kind == LineRule }

// SubRule is one member of a composite AND rule: AND,((TYPE,VALUE), ...).
type SubRule struct {
	Type  string
	Value string
}
