package rules

import (
	"reflect"
	"testing"

	"github.com/John-Robertt/rulesync/internal/model"
)

func TestParseLine_Kinds(t *testing.T) {
	tests := []struct {
		in   string
		kind model.LineKind
	}{
		{"", model.LineBlank},
		{"   \t", model.LineBlank},
		{"# Apple", model.LineComment},
		{"  # indented", model.LineComment},
		{"// surge only", model.LineSlashComment},
		{"DOMAIN,example.com", model.LineRule},
		{"DOMAIN", model.LineRule},
	}
	for _, tt := range tests {
		if got := ParseLine(tt.in).Kind; got != tt.kind {
			t.Fatalf("ParseLine(%q).Kind=%d, want=%d", tt.in, got, tt.kind)
		}
	}
}

func TestParseLine_TrimsFieldsKeepsCase(t *testing.T) {
	l := ParseLine("  IP-CIDR , 1.2.3.0/24 ,no-resolve \r")
	if l.Type != "IP-CIDR" || l.Value != "1.2.3.0/24" {
		t.Fatalf("type=%q value=%q", l.Type, l.Value)
	}
	want := []string{"IP-CIDR", "1.2.3.0/24", "no-resolve"}
	if !reflect.DeepEqual(l.Fields, want) {
		t.Fatalf("fields=%q, want=%q", l.Fields, want)
	}
	if l.Raw != "IP-CIDR , 1.2.3.0/24 ,no-resolve" {
		t.Fatalf("raw=%q", l.Raw)
	}

	if got := ParseLine("domain-suffix,Example.COM").Type; got != "domain-suffix" {
		t.Fatalf("type should keep case, got %q", got)
	}
}

func TestParseLine_TypeOnly(t *testing.T) {
	l := ParseLine("DOMAIN")
	if l.Kind != model.LineRule || l.Type != "DOMAIN" || l.Value != "" {
		t.Fatalf("unexpected line: %+v", l)
	}

	l = ParseLine("DOMAIN,")
	if l.Value != "" || len(l.Fields) != 2 {
		t.Fatalf("unexpected line: %+v", l)
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\n\nb\n\n", []string{"a", "", "b", ""}},
	}
	for _, tt := range tests {
		if got := SplitLines(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("SplitLines(%q)=%q, want=%q", tt.in, got, tt.want)
		}
	}
}

func TestParseLines_KeepsOrder(t *testing.T) {
	lines := ParseLines("# head\n\nDOMAIN,a.com\n// x\nDOMAIN-SUFFIX,b.com\n")
	if len(lines) != 5 {
		t.Fatalf("len=%d, want=5", len(lines))
	}
	kinds := []model.LineKind{model.LineComment, model.LineBlank, model.LineRule, model.LineSlashComment, model.LineRule}
	for i, k := range kinds {
		if lines[i].Kind != k {
			t.Fatalf("lines[%d].Kind=%d, want=%d", i, lines[i].Kind, k)
		}
	}
	if lines[4].Value != "b.com" {
		t.Fatalf("lines[4].Value=%q", lines[4].Value)
	}
}
