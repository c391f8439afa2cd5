package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/rulesync/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFile  = "rulesync.yaml"
	stageConfig  = "load_config"
	codeParse    = "CONFIG_PARSE_ERROR"
	codeValidate = "CONFIG_VALIDATE_ERROR"
)

// Config is one sync run's configuration. Directories are relative to Root
// unless absolute.
type Config struct {
	Root            string
	SourceDir       string
	QuanxDir        string
	ClashDir        string
	SingboxDir      string
	Manifest        string // empty disables external lists
	ExternalDir     string
	SelfURLPrefixes []string
	FetchTimeout    time.Duration
	MetricsFile     string // empty disables the textfile export
}

func Default() Config {
	return Config{
		Root:         ".",
		SourceDir:    filepath.Join("Surge", "RULE-SET"),
		QuanxDir:     filepath.Join("Quantumult", "X", "Filter"),
		ClashDir:     filepath.Join("Clash", "RuleSet"),
		SingboxDir:   filepath.Join("sing-box", "source"),
		ExternalDir:  filepath.Join("sing-box", "source"),
		FetchTimeout: 30 * time.Second,
	}
}

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

type rawConfig struct {
	Root            *string  `yaml:"root"`
	SourceDir       *string  `yaml:"source_dir"`
	QuanxDir        *string  `yaml:"quanx_dir"`
	ClashDir        *string  `yaml:"clash_dir"`
	SingboxDir      *string  `yaml:"singbox_dir"`
	Manifest        *string  `yaml:"manifest"`
	ExternalDir     *string  `yaml:"external_dir"`
	SelfURLPrefixes []string `yaml:"self_url_prefixes"`
	FetchTimeout    *string  `yaml:"fetch_timeout"`
	MetricsFile     *string  `yaml:"metrics_file"`
}

// Load reads path on top of Default. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, &ParseError{
			AppError: model.AppError{
				Code:    codeParse,
				Message: "读取配置文件失败",
				Stage:   stageConfig,
				Path:    path,
			},
			Cause: err,
		}
	}
	return Parse(path, string(b))
}

// Parse decodes a config document on top of Default.
func Parse(path string, content string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(content) == "" {
		return cfg, nil
	}

	var rc rawConfig
	if err := decodeStrict(content, &rc); err != nil {
		return Config{}, &ParseError{
			AppError: model.AppError{
				Code:    codeParse,
				Message: "配置 YAML 解析失败",
				Stage:   stageConfig,
				Path:    path,
			},
			Cause: err,
		}
	}

	setString(&cfg.Root, rc.Root)
	setString(&cfg.SourceDir, rc.SourceDir)
	setString(&cfg.QuanxDir, rc.QuanxDir)
	setString(&cfg.ClashDir, rc.ClashDir)
	setString(&cfg.SingboxDir, rc.SingboxDir)
	setString(&cfg.Manifest, rc.Manifest)
	setString(&cfg.ExternalDir, rc.ExternalDir)
	setString(&cfg.MetricsFile, rc.MetricsFile)
	for _, p := range rc.SelfURLPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			cfg.SelfURLPrefixes = append(cfg.SelfURLPrefixes, p)
		}
	}
	if rc.FetchTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*rc.FetchTimeout))
		if err != nil || d <= 0 {
			return Config{}, &ParseError{
				AppError: model.AppError{
					Code:    codeValidate,
					Message: "fetch_timeout 必须是正的时长",
					Stage:   stageConfig,
					Path:    path,
					Snippet: *rc.FetchTimeout,
					Hint:    "e.g. 30s, 1m",
				},
				Cause: err,
			}
		}
		cfg.FetchTimeout = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, &ParseError{
			AppError: model.AppError{
				Code:    codeValidate,
				Message: err.Error(),
				Stage:   stageConfig,
				Path:    path,
			},
		}
	}
	return cfg, nil
}

func (c Config) validate() error {
	dirs := []struct {
		key string
		val string
	}{
		{"root", c.Root},
		{"source_dir", c.SourceDir},
		{"quanx_dir", c.QuanxDir},
		{"clash_dir", c.ClashDir},
		{"singbox_dir", c.SingboxDir},
		{"external_dir", c.ExternalDir},
	}
	for _, d := range dirs {
		if strings.TrimSpace(d.val) == "" {
			return fmt.Errorf("%s 不能为空", d.key)
		}
	}
	return nil
}

// Path resolves p against Root.
func (c Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func decodeStrict(content string, out any) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}

	// Reject multi-document YAML.
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return errors.New("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
