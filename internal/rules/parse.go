package rules

import (
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
)

// ParseLine classifies one raw RULE-SET line.
//
// Only surrounding whitespace is removed: no case folding, no validation of
// the value. A rule line without a value gets Value == "" and is left to the
// emitters to drop.
func ParseLine(raw string) model.Line {
	line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
	switch {
	case line == "":
		return model.Line{Kind: model.LineBlank}
	case strings.HasPrefix(line, "#"):
		return model.Line{Raw: line, Kind: model.LineComment}
	case strings.HasPrefix(line, "//"):
		return model.Line{Raw: line, Kind: model.LineSlashComment}
	}

	fields := splitFields(line)
	l := model.Line{
		Raw:    line,
		Kind:   model.LineRule,
		Type:   fields[0],
		Fields: fields,
	}
	if len(fields) > 1 {
		l.Value = fields[1]
	}
	return l
}

// ParseLines parses every line of a document, keeping order.
func ParseLines(text string) []model.Line {
	raw := SplitLines(text)
	out := make([]model.Line, 0, len(raw))
	for _, r := range raw {
		out = append(out, ParseLine(r))
	}
	return out
}

// SplitLines splits a document the way a line-oriented file read does:
// "\n" and "\r\n" both terminate a line and a final terminator does not
// produce an extra empty line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines
}

func splitFields(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
