package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/John-Robertt/rulesync/internal/model"
)

const sampleList = `# Apple
DOMAIN,apple.com
DOMAIN-SUFFIX,icloud.com
USER-AGENT,App*
AND,((DOMAIN,a.com), (PROCESS-NAME,curl))
`

func doPOST(t *testing.T, h http.Handler, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nbody=%q", err, rr.Body.String())
	}
	return resp.Error.Code
}

func TestConvert_Quanx(t *testing.T) {
	rr := doPOST(t, NewMux(), "/api/convert?target=quanx&policy=Apple", sampleList)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	want := "# Apple\nDOMAIN,apple.com,Apple\nDOMAIN-SUFFIX,icloud.com,Apple\n"
	if got := rr.Body.String(); got != want {
		t.Fatalf("body=%q, want=%q", got, want)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("Content-Type=%q", ct)
	}
}

func TestConvert_Clash(t *testing.T) {
	rr := doPOST(t, NewMux(), "/api/convert?target=clash&fileName=Apple", sampleList)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	want := "payload:\n  # Apple\n  - DOMAIN,apple.com\n  - DOMAIN-SUFFIX,icloud.com\n  - AND,((DOMAIN,a.com),(PROCESS-NAME,curl))\n"
	if got := rr.Body.String(); got != want {
		t.Fatalf("body=%q, want=%q", got, want)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="Apple.yaml"`) {
		t.Fatalf("Content-Disposition=%q", cd)
	}
}

func TestConvert_Singbox(t *testing.T) {
	rr := doPOST(t, NewMux(), "/api/convert?target=singbox", sampleList)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("Content-Type=%q", ct)
	}
	var doc struct {
		Version int              `json:"version"`
		Rules   []map[string]any `json:"rules"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Version != 2 || len(doc.Rules) != 3 {
		t.Fatalf("doc=%+v, want version 2 with domain, domain_suffix and logical rules", doc)
	}
	if doc.Rules[2]["type"] != "logical" {
		t.Fatalf("last rule=%v, want logical", doc.Rules[2])
	}
}

func TestConvert_SingboxExternalBehavior(t *testing.T) {
	rr := doPOST(t, NewMux(), "/api/convert?target=singbox&behavior=domain", "payload:\n  - '+.example.com'\n")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"domain_suffix"`) {
		t.Fatalf("body=%s", rr.Body.String())
	}
}

func TestConvert_NoOutput(t *testing.T) {
	rr := doPOST(t, NewMux(), "/api/convert?target=singbox", "# only comments\nUSER-AGENT,x\n")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want=%d", rr.Code, http.StatusUnprocessableEntity)
	}
	if got := errorCode(t, rr); got != "NO_OUTPUT" {
		t.Fatalf("code=%q, want=%q", got, "NO_OUTPUT")
	}
}

func TestConvert_InvalidRequests(t *testing.T) {
	cases := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{name: "missing target", target: "/api/convert", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "unknown target", target: "/api/convert?target=surge", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "quanx without policy", target: "/api/convert?target=quanx", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "policy on clash", target: "/api/convert?target=clash&policy=P", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "behavior on quanx", target: "/api/convert?target=quanx&policy=P&behavior=domain", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "unknown behavior", target: "/api/convert?target=singbox&behavior=geoip", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "duplicate target", target: "/api/convert?target=clash&target=quanx", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "unknown param", target: "/api/convert?target=clash&mode=config", status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "url on POST", target: "/api/convert?target=clash&url=" + url.QueryEscape("https://example.com/a.list"), status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{name: "policy with comma", target: "/api/convert?target=quanx&policy=" + url.QueryEscape("a,b"), status: http.StatusUnprocessableEntity, code: "INVALID_POLICY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doPOST(t, NewMux(), tc.target, sampleList)
			if rr.Code != tc.status {
				t.Fatalf("status=%d, want=%d body=%s", rr.Code, tc.status, rr.Body.String())
			}
			if got := errorCode(t, rr); got != tc.code {
				t.Fatalf("code=%q, want=%q", got, tc.code)
			}
		})
	}
}

func TestConvert_BodyLimits(t *testing.T) {
	mux := NewMuxWithOptions(Options{MaxBodyBytes: 16})
	rr := doPOST(t, mux, "/api/convert?target=clash", strings.Repeat("DOMAIN,a.com\n", 4))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d, want=%d", rr.Code, http.StatusRequestEntityTooLarge)
	}
	if got := errorCode(t, rr); got != "TOO_LARGE" {
		t.Fatalf("code=%q, want=%q", got, "TOO_LARGE")
	}

	rr = doPOST(t, NewMux(), "/api/convert?target=clash", "DOMAIN,\xff\n")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d, want=%d", rr.Code, http.StatusUnprocessableEntity)
	}
	if got := errorCode(t, rr); got != "INVALID_UTF8" {
		t.Fatalf("code=%q, want=%q", got, "INVALID_UTF8")
	}
}

func TestConvert_GETFetchesURL(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Apple.list" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleList))
	}))
	defer up.Close()

	mux := NewMux()

	req := httptest.NewRequest(http.MethodGet, "/api/convert?target=quanx&policy=Apple&url="+url.QueryEscape(up.URL+"/Apple.list"), nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.HasPrefix(rr.Body.String(), "# Apple\nDOMAIN,apple.com,Apple\n") {
		t.Fatalf("body=%q", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/convert?target=clash&url="+url.QueryEscape(up.URL+"/missing.list"), nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d, want=%d", rr.Code, http.StatusBadGateway)
	}
	if got := errorCode(t, rr); got != "FETCH_FAILED" {
		t.Fatalf("code=%q, want=%q", got, "FETCH_FAILED")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/convert?target=clash", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing url: status=%d, want=%d", rr.Code, http.StatusBadRequest)
	}
}
