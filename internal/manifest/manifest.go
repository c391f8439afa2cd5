package manifest

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/John-Robertt/rulesync/internal/model"
	"gopkg.in/yaml.v3"
)

const stageParseManifest = "parse_manifest"

type ParseError struct {
	AppError model.AppError
	Cause    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// rawProvider holds the keys of a mihomo rule-provider entry that matter
// here. Decoding is lenient so a complete client config can be the manifest.
type rawProvider struct {
	Type     string `yaml:"type"`
	Behavior string `yaml:"behavior"`
	URL      string `yaml:"url"`
}

type rawManifest struct {
	RuleProviders map[string]rawProvider `yaml:"rule-providers"`
}

// Parse decodes a manifest document and returns its external providers
// sorted by name. Providers without a URL (file/inline providers) and those
// whose URL starts with one of selfPrefixes are excluded.
func Parse(sourcePath string, content string, selfPrefixes []string) ([]model.Provider, error) {
	var rm rawManifest
	if err := yaml.Unmarshal([]byte(content), &rm); err != nil {
		return nil, &ParseError{
			AppError: model.AppError{
				Code:    "MANIFEST_PARSE_ERROR",
				Message: "manifest YAML 解析失败",
				Stage:   stageParseManifest,
				Path:    sourcePath,
				Snippet: truncateSnippet(content, 200),
			},
			Cause: err,
		}
	}

	names := make([]string, 0, len(rm.RuleProviders))
	for name := range rm.RuleProviders {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]model.Provider, 0, len(names))
	for _, name := range names {
		rp := rm.RuleProviders[name]
		u := strings.TrimSpace(rp.URL)
		if u == "" {
			continue
		}
		if isSelfURL(u, selfPrefixes) {
			continue
		}
		if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "MANIFEST_VALIDATE_ERROR",
					Message: fmt.Sprintf("provider 名称不合法：%q", name),
					Stage:   stageParseManifest,
					Path:    sourcePath,
					Hint:    "name is used as the output file stem",
				},
			}
		}
		if err := validateHTTPURL(u); err != nil {
			return nil, &ParseError{
				AppError: model.AppError{
					Code:    "MANIFEST_VALIDATE_ERROR",
					Message: fmt.Sprintf("rule-providers.%s.url 不合法", name),
					Stage:   stageParseManifest,
					Path:    sourcePath,
					Snippet: u,
				},
				Cause: err,
			}
		}
		out = append(out, model.Provider{
			Name:     name,
			URL:      u,
			Behavior: model.ParseBehavior(rp.Behavior),
		})
	}
	return out, nil
}

// Names returns the provider names as a set.
func Names(providers []model.Provider) map[string]struct{} {
	m := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		m[p.Name] = struct{}{}
	}
	return m
}

func isSelfURL(u string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return errors.New("url must be absolute")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http/https")
	}
	return nil
}

func truncateSnippet(s string, max int) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max]
}
