package render

import (
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
)

// RenderQuanx renders a Quantumult X filter list: every rule becomes
// TYPE,VALUE,POLICY. Extra fields such as no-resolve are not supported by
// QX filter lists and are dropped.
func RenderQuanx(lines []model.Line, policy string) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		switch l.Kind {
		case model.LineBlank:
			out = append(out, "")
		case model.LineComment:
			out = append(out, l.Raw)
		case model.LineRule:
			if skipped(TargetQuanx, l.Type) || l.Value == "" {
				continue
			}
			out = append(out, l.Type+","+l.Value+","+policy)
		}
	}
	return finishLines(out, 0)
}

func quanxPolicyNameOK(name string) error {
	if strings.TrimSpace(name) == "" {
		return &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_POLICY",
				Message: "Quantumult X 策略名不能为空",
				Stage:   "render",
			},
		}
	}
	if strings.ContainsAny(name, "\r\n\x00") || strings.Contains(name, ",") {
		return &RenderError{
			AppError: model.AppError{
				Code:    "INVALID_POLICY",
				Message: "策略名含有 Quantumult X 不支持的字符（, 或控制字符）",
				Stage:   "render",
				Snippet: name,
				Hint:    "rename the RULE-SET file",
			},
		}
	}
	return nil
}
