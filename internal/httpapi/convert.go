package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/John-Robertt/rulesync/internal/fetch"
	"github.com/John-Robertt/rulesync/internal/model"
	"github.com/John-Robertt/rulesync/internal/render"
	"github.com/John-Robertt/rulesync/internal/rules"
)

type convertRequest struct {
	Target   render.Target
	Policy   string         // quanx only
	Behavior model.Behavior // singbox only; selects the external list adapter
	URL      string         // GET only
	FileName string
}

type convertHandler struct {
	opt Options
}

// handleConvert serves both forms of /api/convert:
//
//	GET  /api/convert?target=...&url=...   fetch a remote list, then convert
//	POST /api/convert?target=...           convert the request body
func (h convertHandler) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, err := parseConvertQuery(r)
	if err != nil {
		writeErrorFromErr(w, h.opt.Metrics, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opt.ConvertTimeout)
	defer cancel()

	text, err := h.readInput(ctx, w, r, req)
	if err != nil {
		writeErrorFromErr(w, h.opt.Metrics, err)
		return
	}

	out, err := runConvert(req, text)
	if err != nil {
		writeErrorFromErr(w, h.opt.Metrics, err)
		return
	}

	if err := setAttachmentHeaders(w, req); err != nil {
		writeErrorFromErr(w, h.opt.Metrics, err)
		return
	}
	writeBody(w, http.StatusOK, contentType(req.Target), out)
}

func (h convertHandler) readInput(ctx context.Context, w http.ResponseWriter, r *http.Request, req convertRequest) (string, error) {
	if r.Method == http.MethodGet {
		return h.opt.Fetcher.FetchText(ctx, fetch.KindRuleList, req.URL)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opt.MaxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", apiError(http.StatusRequestEntityTooLarge, model.AppError{
				Code:    "TOO_LARGE",
				Message: fmt.Sprintf("请求体过大（>%d bytes）", mbe.Limit),
				Stage:   "read_body",
			}, err)
		}
		return "", apiError(http.StatusBadRequest, model.AppError{
			Code:    "INVALID_ARGUMENT",
			Message: "读取请求体失败",
			Stage:   "read_body",
		}, err)
	}
	if !utf8.Valid(body) {
		return "", apiError(http.StatusUnprocessableEntity, model.AppError{
			Code:    "INVALID_UTF8",
			Message: "请求体不是合法 UTF-8 文本",
			Stage:   "read_body",
		}, nil)
	}
	return string(body), nil
}

func runConvert(req convertRequest, text string) (string, error) {
	if req.Behavior != "" {
		return render.RenderExternal(req.Behavior, text)
	}
	return render.Render(req.Target, rules.ParseLines(text), req.Policy)
}

func parseConvertQuery(r *http.Request) (convertRequest, error) {
	q := r.URL.Query()
	for key := range q {
		switch key {
		case "target", "policy", "behavior", "url", "fileName":
		default:
			return convertRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("不支持的参数：%s", key), "allowed: target, policy, behavior, url, fileName")
		}
	}

	targetRaw, err := singleQuery(q, "target", true)
	if err != nil {
		return convertRequest{}, err
	}
	target, err := parseTarget(targetRaw)
	if err != nil {
		return convertRequest{}, err
	}
	req := convertRequest{Target: target}

	if req.Policy, err = singleQuery(q, "policy", false); err != nil {
		return convertRequest{}, err
	}
	req.Policy = strings.TrimSpace(req.Policy)
	switch {
	case target == render.TargetQuanx && req.Policy == "":
		return convertRequest{}, requestError("INVALID_ARGUMENT", "target=quanx 需要 policy 参数", "e.g. policy=Proxy")
	case target != render.TargetQuanx && req.Policy != "":
		return convertRequest{}, requestError("INVALID_ARGUMENT", fmt.Sprintf("target=%s 不支持 policy", target), "")
	}

	behavior, err := singleQuery(q, "behavior", false)
	if err != nil {
		return convertRequest{}, err
	}
	if behavior = strings.TrimSpace(behavior); behavior != "" {
		if target != render.TargetSingbox {
			return convertRequest{}, requestError("INVALID_ARGUMENT", "behavior 仅支持 target=singbox", "")
		}
		switch b := model.Behavior(behavior); b {
		case model.BehaviorDomain, model.BehaviorIPCIDR, model.BehaviorClassical:
			req.Behavior = b
		default:
			return convertRequest{}, requestError("INVALID_ARGUMENT", "不支持的 behavior（仅支持 domain/ipcidr/classical）", behavior)
		}
	}

	if req.FileName, err = singleQuery(q, "fileName", false); err != nil {
		return convertRequest{}, err
	}

	rawURL, err := singleQuery(q, "url", r.Method == http.MethodGet)
	if err != nil {
		return convertRequest{}, err
	}
	if r.Method != http.MethodGet && rawURL != "" {
		return convertRequest{}, requestError("INVALID_ARGUMENT", "POST 不支持 url 参数", "send the rule list as the request body")
	}
	req.URL = strings.TrimSpace(rawURL)
	return req, nil
}

func parseTarget(s string) (render.Target, error) {
	t, err := render.ParseTarget(s)
	if err != nil {
		return "", requestError("INVALID_ARGUMENT", "不支持的 target（仅支持 quanx/clash/singbox）", s)
	}
	return t, nil
}

func singleQuery(q url.Values, key string, required bool) (string, error) {
	values, ok := q[key]
	if !ok || len(values) == 0 {
		if required {
			return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("缺少 %s 参数", key), "")
		}
		return "", nil
	}
	if len(values) != 1 {
		return "", requestError("INVALID_ARGUMENT", fmt.Sprintf("%s 参数只能出现一次", key), "")
	}
	return values[0], nil
}

func contentType(t render.Target) string {
	if t == render.TargetSingbox {
		return "application/json; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}
