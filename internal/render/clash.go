package render

import (
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
)

const clashPayloadHeader = "payload:"

// RenderClash renders a mihomo classical rule-provider payload. Rules are
// passed through verbatim (fields re-joined without padding); the policy is
// bound by the rule-provider reference, not by the file.
func RenderClash(lines []model.Line) string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, clashPayloadHeader)
	for _, l := range lines {
		switch l.Kind {
		case model.LineBlank:
			out = append(out, "")
		case model.LineComment:
			out = append(out, "  "+l.Raw)
		case model.LineRule:
			if skipped(TargetClash, l.Type) {
				continue
			}
			out = append(out, "  - "+strings.Join(l.Fields, ","))
		}
	}
	return finishLines(out, 1)
}
