package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/John-Robertt/rulesync/internal/rules"
)

const sampleSource = `# Apple services
DOMAIN,apple.com
DOMAIN-SUFFIX,icloud.com,extended-matching
// surge-only note

IP-CIDR,17.0.0.0/8,no-resolve
IP-CIDR6,2620:149::/32,no-resolve
USER-AGENT,Mozilla*
URL-REGEX,^https?://ads\.
PROCESS-NAME,/Applications/Safari.app
DOMAIN-WILDCARD,*.apple.?om
AND,((DOMAIN-SUFFIX,example.com), (PROCESS-NAME,curl))
DOMAIN-KEYWORD
GEOIP,US


`

func TestRenderQuanx_Sample(t *testing.T) {
	got := RenderQuanx(rules.ParseLines(sampleSource), "Apple")
	want := `# Apple services
DOMAIN,apple.com,Apple
DOMAIN-SUFFIX,icloud.com,Apple

IP-CIDR,17.0.0.0/8,Apple
IP-CIDR6,2620:149::/32,Apple
GEOIP,US,Apple
`
	if got != want {
		t.Fatalf("quanx output mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestRenderQuanx_AlwaysThreeFields(t *testing.T) {
	for _, in := range []string{
		"IP-CIDR,1.1.1.1/32,no-resolve",
		"IP-CIDR,1.1.1.1/32,DIRECT,no-resolve",
		"DOMAIN-SUFFIX,a.com,PROXY,extra,fields",
		"IP-ASN,13335,no-resolve",
	} {
		out := strings.TrimSuffix(RenderQuanx(rules.ParseLines(in), "P"), "\n")
		if got := strings.Count(out, ","); got != 2 {
			t.Fatalf("RenderQuanx(%q)=%q, want exactly 3 fields", in, out)
		}
		if !strings.HasSuffix(out, ",P") {
			t.Fatalf("RenderQuanx(%q)=%q, want policy suffix", in, out)
		}
	}
}

func TestRenderQuanx_DropsEmptyValue(t *testing.T) {
	got := RenderQuanx(rules.ParseLines("DOMAIN\nDOMAIN,\nDOMAIN,a.com\n"), "P")
	if got != "DOMAIN,a.com,P\n" {
		t.Fatalf("got=%q", got)
	}
}

func TestRenderQuanx_EmptySource(t *testing.T) {
	if got := RenderQuanx(nil, "P"); got != "\n" {
		t.Fatalf("got=%q, want=%q", got, "\n")
	}
	if got := RenderQuanx(rules.ParseLines("\n\n// only\n"), "P"); got != "\n" {
		t.Fatalf("got=%q, want=%q", got, "\n")
	}
}

func TestRenderClash_Sample(t *testing.T) {
	got := RenderClash(rules.ParseLines(sampleSource))
	want := `payload:
  # Apple services
  - DOMAIN,apple.com
  - DOMAIN-SUFFIX,icloud.com,extended-matching

  - IP-CIDR,17.0.0.0/8,no-resolve
  - IP-CIDR6,2620:149::/32,no-resolve
  - PROCESS-NAME,/Applications/Safari.app
  - DOMAIN-WILDCARD,*.apple.?om
  - AND,((DOMAIN-SUFFIX,example.com),(PROCESS-NAME,curl))
  - DOMAIN-KEYWORD
  - GEOIP,US
`
	if got != want {
		t.Fatalf("clash output mismatch\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestRenderClash_EmptySource(t *testing.T) {
	if got := RenderClash(rules.ParseLines("\n\n")); got != "payload:\n" {
		t.Fatalf("got=%q", got)
	}
}

func TestSkippedRuleTypes_DifferByTarget(t *testing.T) {
	for _, typ := range []string{"USER-AGENT", "URL-REGEX"} {
		if !skipped(TargetQuanx, typ) || !skipped(TargetClash, typ) {
			t.Fatalf("%s should be skipped by quanx and clash", typ)
		}
	}
	for _, typ := range []string{"AND", "OR", "NOT", "DOMAIN-WILDCARD", "PROCESS-NAME"} {
		if !skipped(TargetQuanx, typ) {
			t.Fatalf("%s should be skipped by quanx", typ)
		}
		if skipped(TargetClash, typ) {
			t.Fatalf("%s should be kept by clash", typ)
		}
	}
	if SkippedRuleTypes(TargetSingbox) != nil {
		t.Fatalf("singbox has no deny-list")
	}
}

func TestUnsupportedType_NeverEmitted(t *testing.T) {
	lines := rules.ParseLines("USER-AGENT,Mozilla\nDOMAIN,a.com\n")

	if out := RenderQuanx(lines, "P"); strings.Contains(out, "Mozilla") {
		t.Fatalf("quanx output contains USER-AGENT rule:\n%s", out)
	}
	// USER-AGENT stays in clashSkip on purpose; see DESIGN.md Open Question 1.
	if out := RenderClash(lines); strings.Contains(out, "Mozilla") {
		t.Fatalf("clash output contains USER-AGENT rule:\n%s", out)
	}
	out, err := RenderSingbox(lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "Mozilla") {
		t.Fatalf("singbox output contains USER-AGENT rule:\n%s", out)
	}

	// Types only mihomo understands still reach the clash payload.
	lines = rules.ParseLines("PROCESS-NAME,curl\n")
	if out := RenderClash(lines); !strings.Contains(out, "  - PROCESS-NAME,curl") {
		t.Fatalf("clash output missing PROCESS-NAME:\n%s", out)
	}
	if out := RenderQuanx(lines, "P"); strings.Contains(out, "curl") {
		t.Fatalf("quanx output contains PROCESS-NAME:\n%s", out)
	}
}

func TestRender_Dispatch(t *testing.T) {
	lines := rules.ParseLines("DOMAIN,a.com\n")
	for _, target := range Targets {
		out, err := Render(target, lines, "P")
		if err != nil {
			t.Fatalf("Render(%s) unexpected error: %v", target, err)
		}
		if !strings.Contains(out, "a.com") {
			t.Fatalf("Render(%s)=%q", target, out)
		}
	}
}

func TestRender_InvalidPolicy(t *testing.T) {
	for _, policy := range []string{"", "A,B", "x\ny"} {
		_, err := Render(TargetQuanx, nil, policy)
		var re *RenderError
		if !errors.As(err, &re) {
			t.Fatalf("policy=%q: expected *RenderError, got %T: %v", policy, err, err)
		}
		if re.AppError.Code != "INVALID_POLICY" {
			t.Fatalf("code=%q, want=%q", re.AppError.Code, "INVALID_POLICY")
		}
	}
}

func TestParseTarget(t *testing.T) {
	for _, s := range []string{"quanx", " clash ", "singbox"} {
		if _, err := ParseTarget(s); err != nil {
			t.Fatalf("ParseTarget(%q) unexpected err: %v", s, err)
		}
	}
	_, err := ParseTarget("surge")
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %T: %v", err, err)
	}
	if re.AppError.Code != "UNSUPPORTED_TARGET" {
		t.Fatalf("code=%q, want=%q", re.AppError.Code, "UNSUPPORTED_TARGET")
	}
}
