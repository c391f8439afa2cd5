package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
)

type Target string

const (
	TargetQuanx   Target = "quanx"
	TargetClash   Target = "clash"
	TargetSingbox Target = "singbox"
)

// Targets lists every output target in the order a sync run writes them.
var Targets = []Target{TargetQuanx, TargetClash, TargetSingbox}

// ErrNothingToEmit reports that a source produced no usable content for a
// target. Callers must not write a file in that case.
var ErrNothingToEmit = errors.New("nothing to emit")

type RenderError struct {
	AppError model.AppError
	Cause    error
}

func (e *RenderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.TrimSpace(s)); t {
	case TargetQuanx, TargetClash, TargetSingbox:
		return t, nil
	default:
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_TARGET",
				Message: fmt.Sprintf("不支持的 target：%s", s),
				Stage:   "render",
				Hint:    "expected: quanx | clash | singbox",
			},
		}
	}
}

// Render converts parsed RULE-SET lines into one target format.
// policy is only used by Quantumult X.
func Render(target Target, lines []model.Line, policy string) (string, error) {
	switch target {
	case TargetQuanx:
		if err := quanxPolicyNameOK(policy); err != nil {
			return "", err
		}
		return RenderQuanx(lines, policy), nil
	case TargetClash:
		return RenderClash(lines), nil
	case TargetSingbox:
		return RenderSingbox(lines)
	default:
		return "", &RenderError{
			AppError: model.AppError{
				Code:    "UNSUPPORTED_TARGET",
				Message: fmt.Sprintf("不支持的 target：%s", target),
				Stage:   "render",
			},
		}
	}
}

// finishLines drops trailing blank lines (the first keep lines always stay) and
// terminates the document with a single newline.
func finishLines(out []string, keep int) string {
	for len(out) > keep && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n"
}
