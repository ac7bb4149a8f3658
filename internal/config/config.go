// Package config loads and validates the application configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"feedwatch/internal/filter"
	"feedwatch/internal/model"
	"feedwatch/internal/scrape"
)

// Config is the validated application configuration.
type Config struct {
	DatabasePath     string
	LogLevel         string
	Tick             time.Duration
	FetchConcurrency int64
	Telegram         Telegram
	Sources          []model.Source
}

// Telegram holds delivery settings.
type Telegram struct {
	Token  string
	ChatID int64
}

type fileConfig struct {
	DatabasePath string         `yaml:"database_path"`
	LogLevel     string         `yaml:"log_level"`
	Tick         string         `yaml:"tick"`
	Fetch        fetchConfig    `yaml:"fetch"`
	Telegram     telegramConfig `yaml:"telegram"`
	Sources      []sourceConfig `yaml:"sources"`
}

type fetchConfig struct {
	Concurrency int64 `yaml:"concurrency"`
}

type telegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type sourceConfig struct {
	Kind    string          `yaml:"kind"`
	URL     string          `yaml:"url"`
	Scrape  *scrape.Program `yaml:"scrape"`
	Inner   *sourceConfig   `yaml:"inner"`
	Refresh refreshConfig   `yaml:"refresh"`
	Title   string          `yaml:"title"`
	Label   string          `yaml:"label"`
	Strip   bool            `yaml:"strip_content"`
	ChatID  int64           `yaml:"chat_id"`
	Filters []filterConfig  `yaml:"filters"`
}

type refreshConfig struct {
	Every  int    `yaml:"every"`  // hours
	Daily  string `yaml:"daily"`  // "HH:MM"
	Weekly string `yaml:"weekly"` // "mon HH:MM"
}

type filterConfig struct {
	Target   string `yaml:"target"`
	Pattern  string `yaml:"pattern"`
	Expected *bool  `yaml:"expected"`
}

// Load reads, expands and validates the configuration file at path.
// Environment variable references in the file are expanded, with a .env
// file honoured when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var raw fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		DatabasePath:     raw.DatabasePath,
		LogLevel:         raw.LogLevel,
		FetchConcurrency: raw.Fetch.Concurrency,
		Telegram:         Telegram(raw.Telegram),
	}
	if raw.Tick != "" {
		tick, err := time.ParseDuration(raw.Tick)
		if err != nil {
			return nil, fmt.Errorf("parse tick: %w", err)
		}
		if tick <= 0 {
			return nil, fmt.Errorf("tick must be positive, got %s", tick)
		}
		cfg.Tick = tick
	}
	cfg.setDefaults()

	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram.token is required")
	}
	if cfg.Telegram.ChatID == 0 {
		return nil, fmt.Errorf("telegram.chat_id is required")
	}
	if len(raw.Sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	urls := make(map[string]bool, len(raw.Sources))
	for i, sc := range raw.Sources {
		src, err := buildSource(sc)
		if err != nil {
			return nil, fmt.Errorf("source #%d: %w", i+1, err)
		}
		if urls[src.URL()] {
			return nil, fmt.Errorf("source #%d: duplicate source URL %s", i+1, src.URL())
		}
		urls[src.URL()] = true
		cfg.Sources = append(cfg.Sources, src)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.DatabasePath == "" {
		c.DatabasePath = "./data/feedwatch.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Tick == 0 {
		c.Tick = 1 * time.Minute
	}
	if c.FetchConcurrency == 0 {
		c.FetchConcurrency = 4
	}
}

func buildSource(sc sourceConfig) (model.Source, error) {
	desc, err := buildDescriptor(sc, true)
	if err != nil {
		return model.Source{}, err
	}

	opts := model.Options{
		Title:        sc.Title,
		Label:        sc.Label,
		StripContent: sc.Strip,
		Destination:  sc.ChatID,
	}

	opts.Refresh, err = buildRefresh(sc.Refresh)
	if err != nil {
		return model.Source{}, err
	}

	for _, fc := range sc.Filters {
		f, err := buildFilter(fc)
		if err != nil {
			return model.Source{}, err
		}
		opts.Filters = append(opts.Filters, f)
	}

	return model.Source{Descriptor: *desc, Options: opts}, nil
}

func buildDescriptor(sc sourceConfig, outer bool) (*model.Descriptor, error) {
	kind := model.SourceKind(sc.Kind)
	if kind == "" {
		kind = model.KindPlain
	}

	switch kind {
	case model.KindPlain, model.KindScraped:
		if sc.URL == "" {
			return nil, fmt.Errorf("source has no url")
		}
		desc := &model.Descriptor{Kind: kind, URL: sc.URL}
		if kind == model.KindScraped {
			if sc.Scrape == nil {
				return nil, fmt.Errorf("scraped source %s has no scrape program", sc.URL)
			}
			if err := sc.Scrape.Validate(); err != nil {
				return nil, err
			}
			desc.Scraper = sc.Scrape
		}
		return desc, nil

	case model.KindBundle:
		if !outer {
			return nil, fmt.Errorf("bundle inside bundle is not supported")
		}
		if sc.Inner == nil {
			return nil, fmt.Errorf("bundle source has no inner source")
		}
		inner, err := buildDescriptor(*sc.Inner, false)
		if err != nil {
			return nil, err
		}
		return &model.Descriptor{Kind: kind, Inner: inner}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
	}
}

func buildRefresh(rc refreshConfig) (model.RefreshRule, error) {
	set := 0
	if rc.Every != 0 {
		set++
	}
	if rc.Daily != "" {
		set++
	}
	if rc.Weekly != "" {
		set++
	}
	if set > 1 {
		return model.RefreshRule{}, fmt.Errorf("refresh rule must set only one of every, daily, weekly")
	}

	switch {
	case rc.Daily != "":
		hour, minute, err := parseClock(rc.Daily)
		if err != nil {
			return model.RefreshRule{}, err
		}
		return model.RefreshRule{Kind: model.RuleDaily, Hour: hour, Minute: minute}, nil

	case rc.Weekly != "":
		dayStr, clock, ok := strings.Cut(rc.Weekly, " ")
		if !ok {
			return model.RefreshRule{}, fmt.Errorf("weekly rule %q must be \"<day> HH:MM\"", rc.Weekly)
		}
		day, err := parseWeekday(dayStr)
		if err != nil {
			return model.RefreshRule{}, err
		}
		hour, minute, err := parseClock(clock)
		if err != nil {
			return model.RefreshRule{}, err
		}
		return model.RefreshRule{Kind: model.RuleWeekly, Weekday: day, Hour: hour, Minute: minute}, nil

	case rc.Every < 0:
		return model.RefreshRule{}, fmt.Errorf("refresh interval must be positive, got %d", rc.Every)

	case rc.Every == 0:
		// Unset rule: check hourly.
		return model.RefreshRule{Kind: model.RuleEvery, Every: time.Hour}, nil

	default:
		return model.RefreshRule{Kind: model.RuleEvery, Every: time.Duration(rc.Every) * time.Hour}, nil
	}
}

func parseClock(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range", minute)
	}
	return hour, minute, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	day, ok := weekdays[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return day, nil
}

func buildFilter(fc filterConfig) (model.Filter, error) {
	target := model.FilterTarget(fc.Target)
	switch target {
	case model.TargetTitle, model.TargetContent:
	default:
		return model.Filter{}, fmt.Errorf("unknown filter target %q", fc.Target)
	}

	expected := true
	if fc.Expected != nil {
		expected = *fc.Expected
	}
	return filter.Compile(target, fc.Pattern, expected)
}
