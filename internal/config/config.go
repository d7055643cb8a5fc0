package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "INKFEED_CONFIG"
	outputDirEnv  = "INKFEED_OUTPUT_DIR"

	defaultBaseDelay = time.Second
)

// Config holds high-level settings required across the application.
type Config struct {
	OutputDir     string            `yaml:"output_dir"`
	OutputFormats []string          `yaml:"output_formats"`
	Workers       WorkerConfig      `yaml:"workers"`
	Retry         RetryConfig       `yaml:"retry"`
	Logging       LoggingConfig     `yaml:"logging"`
	Sleepscreen   SleepscreenConfig `yaml:"sleepscreen"`
	Sources       []SourceConfig    `yaml:"sources"`
}

// WorkerConfig bounds the parallelism of each pipeline stage.
type WorkerConfig struct {
	Sources int `yaml:"sources"`
	Images  int `yaml:"images"`
	Renders int `yaml:"renders"`
}

// RetryConfig describes the backoff policy for transient failures.
type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

// Delay parses the configured base delay, reverting to one second.
func (r RetryConfig) Delay() time.Duration {
	if r.BaseDelay == "" {
		return defaultBaseDelay
	}
	d, err := time.ParseDuration(r.BaseDelay)
	if err != nil || d <= 0 {
		log.Printf("config: invalid base_delay %q, reverting to %s", r.BaseDelay, defaultBaseDelay)
		return defaultBaseDelay
	}
	return d
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SleepscreenConfig describes the grayscale e-ink export geometry.
type SleepscreenConfig struct {
	Width           int `yaml:"width"`
	Height          int `yaml:"height"`
	SpotlightCount  int `yaml:"spotlight_count"`
	MaxHeadlines    int `yaml:"max_headlines"`
	MaxExcerptChars int `yaml:"max_excerpt_chars"`
}

// SourceConfig describes a single configured source and its adapter kind.
type SourceConfig struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	DisplayName string `yaml:"display_name"`
	Enabled     *bool  `yaml:"enabled"`
	// TimestamplessLast sorts items without a publication date after dated
	// ones within this source; off by default to preserve adapter order.
	TimestamplessLast bool `yaml:"timestampless_last"`

	// IncludeContent fetches the linked article page and extracts its
	// readable text; on unless disabled. Used by hackernews and rss.
	IncludeContent *bool `yaml:"include_article_content"`

	// rss
	URL         string `yaml:"url"`
	MaxArticles int    `yaml:"max_articles"`

	// hackernews
	TopStories          int   `yaml:"top_stories"`
	IncludeComments     *bool `yaml:"include_comments"`
	MaxCommentDepth     int   `yaml:"max_comment_depth"`
	MaxCommentsPerLevel int   `yaml:"max_comments_per_level"`

	// kaginews
	Categories []string `yaml:"categories"`
	Language   string   `yaml:"language"`
	MaxStories int      `yaml:"max_stories_per_category"`
}

// IsEnabled treats the absent enabled key as true.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ContentEnabled treats the absent include_article_content key as true.
func (s SourceConfig) ContentEnabled() bool {
	return s.IncludeContent == nil || *s.IncludeContent
}

// CommentsEnabled treats the absent include_comments key as true.
func (s SourceConfig) CommentsEnabled() bool {
	return s.IncludeComments == nil || *s.IncludeComments
}

// Display returns the human-readable label, defaulting to the name.
func (s SourceConfig) Display() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		cfg.OutputDir = v
	}

	return cfg
}

func mergeConfig(base, override Config) Config {
	if override.OutputDir != "" {
		base.OutputDir = override.OutputDir
	}
	if len(override.OutputFormats) > 0 {
		base.OutputFormats = override.OutputFormats
	}

	if override.Workers.Sources > 0 {
		base.Workers.Sources = override.Workers.Sources
	}
	if override.Workers.Images > 0 {
		base.Workers.Images = override.Workers.Images
	}
	if override.Workers.Renders > 0 {
		base.Workers.Renders = override.Workers.Renders
	}

	if override.Retry.MaxRetries > 0 {
		base.Retry.MaxRetries = override.Retry.MaxRetries
	}
	if override.Retry.BaseDelay != "" {
		base.Retry.BaseDelay = override.Retry.BaseDelay
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Sleepscreen.Width > 0 {
		base.Sleepscreen.Width = override.Sleepscreen.Width
	}
	if override.Sleepscreen.Height > 0 {
		base.Sleepscreen.Height = override.Sleepscreen.Height
	}
	if override.Sleepscreen.SpotlightCount > 0 {
		base.Sleepscreen.SpotlightCount = override.Sleepscreen.SpotlightCount
	}
	if override.Sleepscreen.MaxHeadlines > 0 {
		base.Sleepscreen.MaxHeadlines = override.Sleepscreen.MaxHeadlines
	}
	if override.Sleepscreen.MaxExcerptChars > 0 {
		base.Sleepscreen.MaxExcerptChars = override.Sleepscreen.MaxExcerptChars
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		OutputDir:     "output",
		OutputFormats: []string{"html"},
		Workers: WorkerConfig{
			Sources: 4,
			Images:  8,
			Renders: 4,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  "1s",
		},
		Logging: LoggingConfig{Level: "info"},
		Sleepscreen: SleepscreenConfig{
			Width:           480,
			Height:          800,
			SpotlightCount:  2,
			MaxHeadlines:    10,
			MaxExcerptChars: 350,
		},
		Sources: []SourceConfig{
			{
				Name:        "hackernews",
				Kind:        "hackernews",
				DisplayName: "Hacker News",
				TopStories:  30,
			},
		},
	}
}
