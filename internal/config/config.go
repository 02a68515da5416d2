// Package config provides configuration management for blogmigrate.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"blogmigrate/internal/align"
	"blogmigrate/internal/extractor"
	"blogmigrate/internal/markdown"
	"blogmigrate/internal/matcher"
	"blogmigrate/internal/normalizer"
	"blogmigrate/internal/reflow"
)

// Configuration validation errors.
var (
	ErrMissingPostsDir          = errors.New("paths.posts_dir is required")
	ErrInvalidMaxAttempts       = errors.New("fetch.retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("fetch.retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("fetch.retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("fetch.retry.timeout_sec must be at least 1")
	ErrInvalidDelay             = errors.New("fetch.delay_ms must be non-negative")
	ErrInvalidBufferSize        = errors.New("fetch.buffer_size_kb must be at least 1")
	ErrInvalidMinSize           = errors.New("extract.min_width and extract.min_height must be non-negative")
	ErrNoKeywords               = errors.New("captions.keywords must not be empty")
	ErrInvalidContextWindow     = errors.New("captions.context_window must be at least 1")
	ErrInvalidStrategy          = errors.New("matcher.strategy must be 'ordinal' or 'score'")
	ErrInvalidThreshold         = errors.New("matcher lengths must be positive")
	ErrInvalidBlankRun          = errors.New("reflow.max_blank_run must be at least 1")
	ErrInvalidOverride          = errors.New("override needs doc, caption and a non-negative position")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete blogmigrate configuration.
type Config struct {
	Paths     PathsConfig      `yaml:"paths"`
	Fetch     FetchConfig      `yaml:"fetch"`
	Extract   ExtractConfig    `yaml:"extract"`
	Captions  CaptionsConfig   `yaml:"captions"`
	Matcher   MatcherConfig    `yaml:"matcher"`
	Reflow    ReflowConfig     `yaml:"reflow"`
	Overrides []OverrideConfig `yaml:"overrides"`
	Logging   LoggingConfig    `yaml:"logging"`
	Features  FeaturesConfig   `yaml:"features"`
}

// PathsConfig locates the inputs and state of a run.
type PathsConfig struct {
	// PostsDir holds the converted markdown posts that get rewritten.
	PostsDir string `yaml:"posts_dir"`
	// OriginalsDir holds the original exports the captions come from.
	OriginalsDir string `yaml:"originals_dir"`
	// ArticlesList is a JSON array of {title, url} entries.
	ArticlesList string `yaml:"articles_list"`
	LedgerPath   string `yaml:"ledger_path"`
	CacheDir     string `yaml:"cache_dir"`
}

// FetchConfig controls retrieval of source pages.
type FetchConfig struct {
	UserAgent     string      `yaml:"user_agent"`
	BlockMarkers  []string    `yaml:"block_markers"`
	Retry         RetryPolicy `yaml:"retry"`
	DelayMs       int         `yaml:"delay_ms"`
	BufferSizeKb  int         `yaml:"buffer_size_kb"`
	CacheTTLHours int         `yaml:"cache_ttl_hours"`
}

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// ExtractConfig controls which images of a page become media items.
type ExtractConfig struct {
	ContentIDs      []string `yaml:"content_ids"`
	ContentClasses  []string `yaml:"content_classes"`
	Blocklist       []string `yaml:"blocklist"`
	ImageExtensions []string `yaml:"image_extensions"`
	TrustedHosts    []string `yaml:"trusted_hosts"`
	MinWidth        int      `yaml:"min_width"`
	MinHeight       int      `yaml:"min_height"`
	// MinSizeAnimatedOnly limits the size filter to animated formats.
	MinSizeAnimatedOnly bool `yaml:"min_size_animated_only"`
}

// CaptionsConfig is the caption vocabulary.
type CaptionsConfig struct {
	Keywords      []string `yaml:"keywords"`
	PromoDenylist []string `yaml:"promo_denylist"`
	ContextWindow int      `yaml:"context_window"`
}

// MatcherConfig holds position thresholds and the media selection strategy.
type MatcherConfig struct {
	matcher.Config `yaml:",inline"`

	Strategy string          `yaml:"strategy"`
	Weights  matcher.Weights `yaml:"weights"`
	MinScore int             `yaml:"min_score"`
}

// ReflowConfig controls output layout.
type ReflowConfig struct {
	reflow.Config `yaml:",inline"`

	TrailingMarkers   []string `yaml:"trailing_markers"`
	RestoreParagraphs bool     `yaml:"restore_paragraphs"`
}

// OverrideConfig forces the position of one caption in one document.
type OverrideConfig struct {
	Doc      string `yaml:"doc"`
	Caption  string `yaml:"caption"`
	Position int    `yaml:"position"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	EnableCaching bool `yaml:"enable_caching"`
	// Write persists changes; without it a run is a dry run.
	Write bool `yaml:"write"`
	// Strict stops the batch at the first failed document.
	Strict bool `yaml:"strict"`
}

// Default returns the configuration with every tuned value filled in.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			PostsDir:     "source/_posts",
			OriginalsDir: "originals",
			ArticlesList: "articles_list.json",
			LedgerPath:   ".blogmigrate/ledger.db",
			CacheDir:     ".blogmigrate/cache",
		},
		Fetch: FetchConfig{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			BlockMarkers: []string{"captcha", "环境异常", "安全验证", "验证"},
			Retry: RetryPolicy{
				MaxAttempts:       3,
				InitialDelayMs:    500,
				MaxDelayMs:        30000,
				BackoffMultiplier: 2.0,
				TimeoutSec:        30,
			},
			DelayMs:       1000,
			BufferSizeKb:  4096,
			CacheTTLHours: 24 * 30,
		},
		Extract: ExtractConfig{
			ContentIDs:      []string{"js_content"},
			ContentClasses:  []string{"rich_media_content"},
			Blocklist:       []string{"avatar", "qrcode", "logo", "icon"},
			ImageExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
			TrustedHosts:    []string{"mmbiz"},
			MinWidth:        200,
			MinHeight:       200,
		},
		Captions: CaptionsConfig{
			Keywords:      []string{"摄", "照", "photo", "image", "©", "来源", "via", "图源", "供图"},
			PromoDenylist: []string{"感谢关注", "近期", "推荐", "mp.weixin.qq.com", "往期精彩", "猜你喜欢"},
			ContextWindow: 5,
		},
		Matcher: MatcherConfig{
			Config:   matcher.DefaultConfig(),
			Strategy: matcher.StrategyOrdinal,
			Weights:  matcher.DefaultWeights(),
			MinScore: 5,
		},
		Reflow: ReflowConfig{
			Config:          reflow.DefaultConfig(),
			TrailingMarkers: []string{"* * *", "全文完", "感谢关注", "往期精彩", "猜你喜欢", "推荐阅读", "长按识别", "扫码关注"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from a YAML file on top of Default.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to a YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Paths.PostsDir == "" {
		return ErrMissingPostsDir
	}

	// Validate retry policy
	if c.Fetch.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Fetch.Retry.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if c.Fetch.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if c.Fetch.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Fetch.DelayMs < 0 {
		return ErrInvalidDelay
	}

	if c.Fetch.BufferSizeKb < 1 {
		return ErrInvalidBufferSize
	}

	if c.Extract.MinWidth < 0 || c.Extract.MinHeight < 0 {
		return ErrInvalidMinSize
	}

	if len(c.Captions.Keywords) == 0 {
		return ErrNoKeywords
	}

	if c.Captions.ContextWindow < 1 {
		return ErrInvalidContextWindow
	}

	if c.Matcher.Strategy != matcher.StrategyOrdinal && c.Matcher.Strategy != matcher.StrategyScore {
		return ErrInvalidStrategy
	}

	m := c.Matcher.Config

	lengths := map[string]int{
		"standalone_max_after": m.StandaloneMaxAfter,
		"min_next_line":        m.MinNextLine,
		"prefix_len":           m.PrefixLen,
		"loose_prefix_len":     m.LoosePrefixLen,
		"loose_min_len":        m.LooseMinLen,
		"before_min_len":       m.BeforeMinLen,
	}

	for name, v := range lengths {
		if v < 1 {
			return fmt.Errorf("%w: matcher.%s", ErrInvalidThreshold, name)
		}
	}

	if c.Reflow.MaxBlankRun < 1 {
		return ErrInvalidBlankRun
	}

	for i, o := range c.Overrides {
		if o.Doc == "" || o.Caption == "" || o.Position < 0 {
			return fmt.Errorf("%w: overrides[%d]", ErrInvalidOverride, i)
		}
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// Pipeline returns the settings of the alignment pipeline.
func (c *Config) Pipeline() align.Config {
	return align.Config{
		Keywords:        c.Captions.Keywords,
		PromoDenylist:   c.Captions.PromoDenylist,
		TrailingMarkers: c.Reflow.TrailingMarkers,
		ContextWindow:   c.Captions.ContextWindow,
		Matcher:         c.Matcher.Config,
		Strategy:        c.Matcher.Strategy,
		Weights:         c.Matcher.Weights,
		MinScore:        c.Matcher.MinScore,
		Reflow:          c.Reflow.Config,
	}
}

// OverridesFor returns the forced caption positions of one document.
func (c *Config) OverridesFor(doc string) align.Overrides {
	var out align.Overrides

	for _, o := range c.Overrides {
		if o.Doc != doc {
			continue
		}

		if out == nil {
			out = align.Overrides{}
		}

		out[o.Caption] = o.Position
	}

	return out
}

// MediaRules returns the image filter settings.
func (c *Config) MediaRules() normalizer.Rules {
	return normalizer.Rules{
		Blocklist:           c.Extract.Blocklist,
		ImageExtensions:     c.Extract.ImageExtensions,
		TrustedHosts:        c.Extract.TrustedHosts,
		MinWidth:            c.Extract.MinWidth,
		MinHeight:           c.Extract.MinHeight,
		MinSizeAnimatedOnly: c.Extract.MinSizeAnimatedOnly,
	}
}

// ContentOptions returns the selectors of the article body container.
func (c *Config) ContentOptions() extractor.Options {
	return extractor.Options{
		ContentIDs:     c.Extract.ContentIDs,
		ContentClasses: c.Extract.ContentClasses,
	}
}

// Rules returns the caption vocabulary shared by the line-level passes.
func (c *Config) Rules() *markdown.Rules {
	return markdown.NewRules(c.Captions.Keywords, c.Captions.PromoDenylist, c.Reflow.TrailingMarkers)
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the timeout duration.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// GetDelay returns the pause between two fetched documents.
func (f *FetchConfig) GetDelay() time.Duration {
	return time.Duration(f.DelayMs) * time.Millisecond
}

// GetCacheTTL returns how long fetched pages stay cached. Zero keeps them forever.
func (f *FetchConfig) GetCacheTTL() time.Duration {
	return time.Duration(f.CacheTTLHours) * time.Hour
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Posts: %s, Strategy: %s, MaxAttempts: %d, Write: %t}",
		c.Paths.PostsDir,
		c.Matcher.Strategy,
		c.Fetch.Retry.MaxAttempts,
		c.Features.Write,
	)
}
