package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/rulesync/internal/render"
)

// setAttachmentHeaders adds Content-Disposition when fileName was given.
func setAttachmentHeaders(w http.ResponseWriter, req convertRequest) error {
	filename, err := outputFileName(req)
	if err != nil {
		return err
	}
	if filename == "" {
		return nil
	}
	w.Header().Set("Content-Disposition", contentDispositionAttachment(filename))
	return nil
}

func outputFileName(req convertRequest) (string, error) {
	base := strings.TrimSpace(req.FileName)
	if base == "" {
		return "", nil
	}
	if strings.ContainsAny(base, "\r\n\x00") {
		return "", requestError("INVALID_ARGUMENT", "fileName 含有非法控制字符", "")
	}
	if strings.Contains(base, "/") || strings.Contains(base, "\\") {
		return "", requestError("INVALID_ARGUMENT", "fileName 不允许包含路径分隔符", "")
	}
	if len(base) > 200 {
		return "", requestError("INVALID_ARGUMENT", "fileName 过长", "max=200 bytes")
	}

	if hasExt(base) {
		return base, nil
	}
	return base + targetExt(req.Target), nil
}

func hasExt(name string) bool {
	i := strings.LastIndexByte(name, '.')
	return i > 0 && i < len(name)-1
}

// targetExt matches the extension a sync run writes for the target.
func targetExt(t render.Target) string {
	switch t {
	case render.TargetQuanx:
		return ".list"
	case render.TargetClash:
		return ".yaml"
	case render.TargetSingbox:
		return ".json"
	default:
		return ""
	}
}

func contentDispositionAttachment(filename string) string {
	// RFC 6266 + RFC 5987.
	escaped := strings.ReplaceAll(filename, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", escaped, pctEncode(filename))
}

// pctEncode escapes like url.QueryEscape but with %20 for spaces.
func pctEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
