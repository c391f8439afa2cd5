package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/rulesync/internal/model"
)

const (
	DefaultTimeout = 30 * time.Second
	userAgent      = "rulesync/1.0"
)

type Kind int

const (
	KindRuleList Kind = iota
	KindManifest
)

func (k Kind) stage() string {
	switch k {
	case KindRuleList:
		return "fetch_rule_list"
	case KindManifest:
		return "fetch_manifest"
	default:
		return "fetch"
	}
}

func (k Kind) defaultMaxBytes() int64 {
	// Large geo/ad lists run to several MB.
	if k == KindRuleList {
		return 16 * 1024 * 1024
	}
	return 1 * 1024 * 1024
}

type Options struct {
	Timeout      time.Duration // default DefaultTimeout
	MaxBytes     int64         // default per kind
	MaxRedirects int           // default 5
}

func (o Options) withDefaults(kind Kind) Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = 5
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = kind.defaultMaxBytes()
	}
	return o
}

type FetchError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// Fetcher is the "fetch text by URL" collaborator of a sync run.
type Fetcher interface {
	FetchText(ctx context.Context, kind Kind, rawURL string) (string, error)
}

// HTTPFetcher fetches over HTTP(S) with fixed Options.
type HTTPFetcher struct {
	Options Options
}

func (f HTTPFetcher) FetchText(ctx context.Context, kind Kind, rawURL string) (string, error) {
	return FetchTextWithOptions(ctx, kind, rawURL, f.Options)
}

func FetchText(ctx context.Context, kind Kind, rawURL string) (string, error) {
	return FetchTextWithOptions(ctx, kind, rawURL, Options{})
}

// FetchTextWithOptions performs a single GET and returns the body as UTF-8
// text. Every failure is a *FetchError carrying the URL and the stage.
func FetchTextWithOptions(ctx context.Context, kind Kind, rawURL string, opt Options) (string, error) {
	opt = opt.withDefaults(kind)
	fail := func(status int, code, msg string, cause error) error {
		return &FetchError{
			Status: status,
			AppError: model.AppError{
				Code:    code,
				Message: msg,
				Stage:   kind.stage(),
				URL:     rawURL,
			},
			Cause: cause,
		}
	}

	if opt.MaxBytes <= 0 {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "响应大小上限必须大于 0", nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "仅允许 http/https URL", errors.Join(errInvalidURLOrScheme, err))
	}

	client := &http.Client{
		Timeout:   opt.Timeout,
		Transport: http.DefaultTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// len(via) is the number of redirects already followed.
			if len(via) > opt.MaxRedirects {
				return errTooManyRedirects
			}
			if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
				return errRedirectBadScheme
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "请求 URL 不合法", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		switch {
		case errors.Is(err, errTooManyRedirects):
			return "", fail(http.StatusBadGateway, "FETCH_FAILED", fmt.Sprintf("重定向次数超过上限（>%d）", opt.MaxRedirects), err)
		case errors.Is(err, errRedirectBadScheme):
			return "", fail(http.StatusBadRequest, "INVALID_ARGUMENT", "重定向目标仅允许 http/https", err)
		case isTimeout(err):
			return "", fail(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程规则超时", err)
		default:
			return "", fail(http.StatusBadGateway, "FETCH_FAILED", "拉取远程规则失败", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), nil)
	}

	// Read at most MaxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, opt.MaxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", fail(http.StatusGatewayTimeout, "FETCH_TIMEOUT", "拉取远程规则超时", err)
		}
		return "", fail(http.StatusBadGateway, "FETCH_FAILED", "读取上游响应失败", err)
	}
	if int64(len(body)) > opt.MaxBytes {
		return "", fail(http.StatusUnprocessableEntity, "TOO_LARGE", fmt.Sprintf("远程规则过大（>%d bytes）", opt.MaxBytes), nil)
	}
	if !utf8.Valid(body) {
		return "", fail(http.StatusUnprocessableEntity, "FETCH_INVALID_UTF8", "远程规则不是合法 UTF-8 文本", nil)
	}

	return string(body), nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
