package rules

import (
	"regexp"
	"strings"
)

// extraEscapes escapes characters that QuoteMeta leaves bare but previously
// generated rule-sets carry escaped ("\-" in most domains). RE2 treats an
// escaped punctuation character as the literal, so matching is unchanged.
var extraEscapes = strings.NewReplacer(
	"-", `\-`,
	"&", `\&`,
	"~", `\~`,
	"#", `\#`,
	" ", `\ `,
)

// WildcardToRegex converts a DOMAIN-WILDCARD pattern into an anchored regular
// expression: "*" matches any run of characters, "?" exactly one, everything
// else is literal.
func WildcardToRegex(pattern string) string {
	escaped := extraEscapes.Replace(regexp.QuoteMeta(pattern))
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	return "^" + escaped + "$"
}
