package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v3"
)

// Duration accepts "60s"-style strings in YAML, JSON and TOML files.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags/env.
type FileConfig struct {
	Entity     string   `yaml:"entity" json:"entity" toml:"entity"`
	Keywords   []string `yaml:"keywords" json:"keywords" toml:"keywords"`
	Descriptor string   `yaml:"descriptor" json:"descriptor" toml:"descriptor"`

	Output struct {
		Dir       string `yaml:"dir" json:"dir" toml:"dir"`
		Format    string `yaml:"format" json:"format" toml:"format"`
		Report    string `yaml:"report" json:"report" toml:"report"`
		ReportPDF string `yaml:"reportPDF" json:"reportPDF" toml:"reportPDF"`
		Tar       bool   `yaml:"tar" json:"tar" toml:"tar"`
	} `yaml:"output" json:"output" toml:"output"`

	Documents struct {
		Dir string `yaml:"dir" json:"dir" toml:"dir"`
		Cap int    `yaml:"cap" json:"cap" toml:"cap"`
	} `yaml:"documents" json:"documents" toml:"documents"`

	Thresholds struct {
		Lexical  *float64 `yaml:"lexical" json:"lexical" toml:"lexical"`
		Semantic *float64 `yaml:"semantic" json:"semantic" toml:"semantic"`
	} `yaml:"thresholds" json:"thresholds" toml:"thresholds"`

	Crawl struct {
		Pages int `yaml:"pages" json:"pages" toml:"pages"`
	} `yaml:"crawl" json:"crawl" toml:"crawl"`

	Session struct {
		Timeout Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
	} `yaml:"session" json:"session" toml:"session"`

	Search struct {
		Template string `yaml:"template" json:"template" toml:"template"`
		HTML     string `yaml:"html" json:"html" toml:"html"`
		File     string `yaml:"file" json:"file" toml:"file"`
	} `yaml:"search" json:"search" toml:"search"`

	Searx struct {
		URL string `yaml:"url" json:"url" toml:"url"`
		Key string `yaml:"key" json:"key" toml:"key"`
	} `yaml:"searx" json:"searx" toml:"searx"`

	Embedding struct {
		Provider   string `yaml:"provider" json:"provider" toml:"provider"`
		BaseURL    string `yaml:"base" json:"base" toml:"base"`
		Model      string `yaml:"model" json:"model" toml:"model"`
		APIKey     string `yaml:"key" json:"key" toml:"key"`
		Dimensions int    `yaml:"dimensions" json:"dimensions" toml:"dimensions"`
	} `yaml:"embedding" json:"embedding" toml:"embedding"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir" toml:"dir"`
		MaxAge      Duration `yaml:"maxAge" json:"maxAge" toml:"maxAge"`
		Clear       bool     `yaml:"clear" json:"clear" toml:"clear"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms" toml:"strictPerms"`
	} `yaml:"cache" json:"cache" toml:"cache"`

	Fetch struct {
		Concurrency int     `yaml:"concurrency" json:"concurrency" toml:"concurrency"`
		RPS         float64 `yaml:"rps" json:"rps" toml:"rps"`
		UserAgent   string  `yaml:"userAgent" json:"userAgent" toml:"userAgent"`
		Robots      *bool   `yaml:"robots" json:"robots" toml:"robots"`
	} `yaml:"fetch" json:"fetch" toml:"fetch"`

	Workers int    `yaml:"workers" json:"workers" toml:"workers"`
	Index   string `yaml:"index" json:"index" toml:"index"`
	Metrics string `yaml:"metrics" json:"metrics" toml:"metrics"`
	LogFile string `yaml:"logFile" json:"logFile" toml:"logFile"`
	DryRun  bool   `yaml:"dryRun" json:"dryRun" toml:"dryRun"`
	Verbose bool   `yaml:"verbose" json:"verbose" toml:"verbose"`
}

// LoadConfigFile reads YAML, JSON or TOML into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse toml: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays every value present in fc onto cfg. Call it on
// DefaultConfig before env and flags are applied.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}

	str(&cfg.Entity, fc.Entity)
	if len(fc.Keywords) > 0 {
		cfg.Keywords = append([]string(nil), fc.Keywords...)
	}
	str(&cfg.Descriptor, fc.Descriptor)

	str(&cfg.OutputDir, fc.Output.Dir)
	str(&cfg.OutputFormat, fc.Output.Format)
	str(&cfg.ReportPath, fc.Output.Report)
	str(&cfg.ReportPDFPath, fc.Output.ReportPDF)
	if fc.Output.Tar {
		cfg.ReportsTar = true
	}

	str(&cfg.DocsDir, fc.Documents.Dir)
	num(&cfg.DocumentCap, fc.Documents.Cap)
	if fc.Thresholds.Lexical != nil {
		cfg.LexicalThreshold = *fc.Thresholds.Lexical
	}
	if fc.Thresholds.Semantic != nil {
		cfg.SemanticThreshold = *fc.Thresholds.Semantic
	}
	num(&cfg.CrawlPageBudget, fc.Crawl.Pages)
	if fc.Session.Timeout.Duration > 0 {
		cfg.SessionTimeout = fc.Session.Timeout.Duration
	}

	str(&cfg.SearchTemplate, fc.Search.Template)
	str(&cfg.SearchHTMLURL, fc.Search.HTML)
	str(&cfg.FileSearchPath, fc.Search.File)
	str(&cfg.SearxURL, fc.Searx.URL)
	str(&cfg.SearxKey, fc.Searx.Key)

	str(&cfg.EmbedProvider, fc.Embedding.Provider)
	str(&cfg.EmbedBaseURL, fc.Embedding.BaseURL)
	str(&cfg.EmbedModel, fc.Embedding.Model)
	str(&cfg.EmbedAPIKey, fc.Embedding.APIKey)
	num(&cfg.EmbedDimensions, fc.Embedding.Dimensions)

	str(&cfg.CacheDir, fc.Cache.Dir)
	if fc.Cache.MaxAge.Duration > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge.Duration
	}
	if fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}

	num(&cfg.FetchConcurrency, fc.Fetch.Concurrency)
	if fc.Fetch.RPS > 0 {
		cfg.FetchRPS = fc.Fetch.RPS
	}
	str(&cfg.UserAgent, fc.Fetch.UserAgent)
	if fc.Fetch.Robots != nil {
		cfg.RespectRobots = *fc.Fetch.Robots
	}

	num(&cfg.Workers, fc.Workers)
	str(&cfg.IndexPath, fc.Index)
	str(&cfg.MetricsFile, fc.Metrics)
	str(&cfg.LogFile, fc.LogFile)
	if fc.DryRun {
		cfg.DryRun = true
	}
	if fc.Verbose {
		cfg.Verbose = true
	}
}
