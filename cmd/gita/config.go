package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/theimaginaryfoundation/gita-moods/scripture"
)

type Config struct {
	Catalog            string        `yaml:"catalog"`
	VerseStore         string        `yaml:"verse_store"`
	Lookup             string        `yaml:"lookup"`
	PrimaryCommentator string        `yaml:"primary_commentator"`
	MaxRetries         int           `yaml:"max_retries"`
	Backoff            time.Duration `yaml:"backoff"`
	Concurrency        int           `yaml:"concurrency"`
	Debounce           time.Duration `yaml:"debounce"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	Model              string        `yaml:"model"`
	LogLevel           string        `yaml:"log_level"`
	APIKey             string        `yaml:"-"`
}

func (c Config) Validate() error {
	if c.Catalog == "" {
		return errors.New("missing --catalog")
	}
	if c.VerseStore == "" {
		return errors.New("missing --verse-store")
	}
	if c.Lookup == "" {
		return errors.New("missing --lookup")
	}
	if c.MaxRetries < 0 {
		return errors.New("max-retries must be >= 0")
	}
	if c.Backoff <= 0 {
		return errors.New("backoff must be > 0")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.Debounce <= 0 {
		return errors.New("debounce must be > 0")
	}
	if c.HTTPTimeout < 0 {
		return errors.New("http-timeout must be >= 0")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Catalog:            filepath.FromSlash("data/moods.json"),
		VerseStore:         "https://vedicscriptures.github.io",
		Lookup:             "https://vedicscriptures.github.io",
		PrimaryCommentator: scripture.DefaultPrimaryCommentator,
		MaxRetries:         scripture.DefaultMaxRetries,
		Backoff:            scripture.DefaultBackoffUnit,
		Debounce:           scripture.DefaultDebounce,
		HTTPTimeout:        15 * time.Second,
		Model:              "gpt-5-mini",
		LogLevel:           "warn",
	}
}

// registerFlags binds the persistent flags. Defaults shown in help come from defaultConfig.
func registerFlags(fs *pflag.FlagSet, cfg *Config, configPath *string) {
	d := defaultConfig()
	fs.StringVar(configPath, "config", "", "Optional YAML config file; flags override its values")
	fs.StringVar(&cfg.Catalog, "catalog", d.Catalog, "Mood catalog JSON: local path or http(s) URL")
	fs.StringVar(&cfg.VerseStore, "verse-store", d.VerseStore, "Per-verse document store: base URL or local directory")
	fs.StringVar(&cfg.Lookup, "lookup", d.Lookup, "Chapter/verse lookup service used by search: base URL or local directory")
	fs.StringVar(&cfg.PrimaryCommentator, "primary", d.PrimaryCommentator, "Commentator key a verse must carry to be shown")
	fs.IntVar(&cfg.MaxRetries, "max-retries", d.MaxRetries, "Retries per verse after the first attempt")
	fs.DurationVar(&cfg.Backoff, "backoff", d.Backoff, "Linear backoff step between verse attempts")
	fs.IntVar(&cfg.Concurrency, "concurrency", d.Concurrency, "Max concurrent verse fetches per mood (0 = all at once)")
	fs.DurationVar(&cfg.Debounce, "debounce", d.Debounce, "Quiet period before a typed query is searched (watch)")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", d.HTTPTimeout, "Per-request HTTP timeout (0 = none)")
	fs.StringVar(&cfg.Model, "model", d.Model, "OpenAI model used by detect")
	fs.StringVar(&cfg.LogLevel, "log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
}

// resolveConfig layers defaults, the optional YAML file and explicitly set flags, in that order.
func resolveConfig(fs *pflag.FlagSet, flagged Config, configPath string) (Config, error) {
	cfg := defaultConfig()
	if configPath != "" {
		if err := loadConfigFile(filepath.Clean(configPath), &cfg); err != nil {
			return Config{}, err
		}
	}

	set := map[string]func(){
		"catalog":      func() { cfg.Catalog = flagged.Catalog },
		"verse-store":  func() { cfg.VerseStore = flagged.VerseStore },
		"lookup":       func() { cfg.Lookup = flagged.Lookup },
		"primary":      func() { cfg.PrimaryCommentator = flagged.PrimaryCommentator },
		"max-retries":  func() { cfg.MaxRetries = flagged.MaxRetries },
		"backoff":      func() { cfg.Backoff = flagged.Backoff },
		"concurrency":  func() { cfg.Concurrency = flagged.Concurrency },
		"debounce":     func() { cfg.Debounce = flagged.Debounce },
		"http-timeout": func() { cfg.HTTPTimeout = flagged.HTTPTimeout },
		"model":        func() { cfg.Model = flagged.Model },
		"log-level":    func() { cfg.LogLevel = flagged.LogLevel },
		"api-key":      func() { cfg.APIKey = flagged.APIKey },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if !scripture.IsRemote(cfg.Catalog) {
		cfg.Catalog = filepath.Clean(cfg.Catalog)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
