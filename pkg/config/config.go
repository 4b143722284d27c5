package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for socialsnap
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Browser    BrowserConfig    `yaml:"browser" json:"browser"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ExtractionConfig holds the extractor tunables
type ExtractionConfig struct {
	MinWidth        int           `yaml:"min_width" json:"min_width"`
	MinHeight       int           `yaml:"min_height" json:"min_height"`
	ValidateTimeout time.Duration `yaml:"validate_timeout" json:"validate_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// ExclusionWords drop images whose URL or alt text mention them
	ExclusionWords []string `yaml:"exclusion_words" json:"exclusion_words"`
	// ContentFilterPhrases drop images whose alt text contains them
	ContentFilterPhrases []string       `yaml:"content_filter_phrases" json:"content_filter_phrases"`
	Carousel             CarouselConfig `yaml:"carousel" json:"carousel"`
	Comments             CommentConfig  `yaml:"comments" json:"comments"`
}

// CarouselConfig holds the Instagram carousel navigation settings
type CarouselConfig struct {
	SettleDelay      time.Duration `yaml:"settle_delay" json:"settle_delay"`
	MaxImages        int           `yaml:"max_images" json:"max_images"`
	StagnantAdvances int           `yaml:"stagnant_advances" json:"stagnant_advances"`
	EmptyReadRetries int           `yaml:"empty_read_retries" json:"empty_read_retries"`
}

// CommentConfig holds the DOM-distance thresholds of the comment heuristics
type CommentConfig struct {
	Enabled             bool `yaml:"enabled" json:"enabled"`
	AuthorLinkDistance  int  `yaml:"author_link_distance" json:"author_link_distance"`
	InteractionDistance int  `yaml:"interaction_distance" json:"interaction_distance"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	BaseDirectory     string        `yaml:"base_directory" json:"base_directory"`
	InterItemDelay    time.Duration `yaml:"inter_item_delay" json:"inter_item_delay"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	Backoff           BackoffConfig `yaml:"backoff" json:"backoff"`
}

// BackoffConfig holds exponential backoff parameters
type BackoffConfig struct {
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// BrowserConfig holds headless browser settings used for live pages
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
}

// ServerConfig holds the relay HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Extraction: ExtractionConfig{
			MinWidth:        150,
			MinHeight:       150,
			ValidateTimeout: 10 * time.Second,
			PollInterval:    250 * time.Millisecond,
			ExclusionWords:  []string{"avatar", "profile", "icon", "emoji"},
			ContentFilterPhrases: []string{
				"may be a news article",
				"news article thumbnail",
				"link preview",
			},
			Carousel: CarouselConfig{
				SettleDelay:      600 * time.Millisecond,
				MaxImages:        20,
				StagnantAdvances: 1,
				EmptyReadRetries: 1,
			},
			Comments: CommentConfig{
				Enabled:             true,
				AuthorLinkDistance:  50,
				InteractionDistance: 100,
			},
		},
		Download: DownloadConfig{
			BaseDirectory:     "./downloads",
			InterItemDelay:    500 * time.Millisecond,
			MaxAttempts:       3,
			Concurrency:       1,
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			Backoff: BackoffConfig{
				BaseDelay:    1 * time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
				JitterFactor: 0.1,
			},
		},
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			NavigationTimeout: 45 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from SOCIALSNAP_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if dir := os.Getenv("SOCIALSNAP_OUTPUT_DIR"); dir != "" {
		c.Download.BaseDirectory = dir
	}
	if v := os.Getenv("SOCIALSNAP_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALSNAP_CONCURRENCY: %w", err))
		} else {
			c.Download.Concurrency = n
		}
	}
	if v := os.Getenv("SOCIALSNAP_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALSNAP_MAX_ATTEMPTS: %w", err))
		} else {
			c.Download.MaxAttempts = n
		}
	}
	if v := os.Getenv("SOCIALSNAP_INTER_ITEM_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALSNAP_INTER_ITEM_DELAY: %w", err))
		} else {
			c.Download.InterItemDelay = d
		}
	}
	if v := os.Getenv("SOCIALSNAP_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("SOCIALSNAP_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Download.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("SOCIALSNAP_HEADLESS"); v != "" {
		c.Browser.Headless = strings.ToLower(v) != "false"
	}
	if ua := os.Getenv("SOCIALSNAP_USER_AGENT"); ua != "" {
		c.Browser.UserAgent = ua
	}
	if addr := os.Getenv("SOCIALSNAP_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("SOCIALSNAP_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if file := os.Getenv("SOCIALSNAP_LOG_FILE"); file != "" {
		c.Logging.File = file
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".socialsnap.yaml",
		".socialsnap.yml",
		filepath.Join(home, ".config", "socialsnap", "config.yaml"),
		filepath.Join(home, ".config", "socialsnap", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Extraction.MinWidth < 0 || c.Extraction.MinHeight < 0 {
		errs = append(errs, errors.New("minimum image dimensions cannot be negative"))
	}
	if c.Extraction.ValidateTimeout <= 0 {
		errs = append(errs, errors.New("validate timeout must be positive"))
	}
	if c.Extraction.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Extraction.Carousel.MaxImages <= 0 {
		errs = append(errs, errors.New("carousel max images must be positive"))
	}
	if c.Extraction.Carousel.StagnantAdvances <= 0 {
		errs = append(errs, errors.New("carousel stagnant advances must be positive"))
	}
	if c.Extraction.Carousel.EmptyReadRetries < 0 {
		errs = append(errs, errors.New("carousel empty read retries cannot be negative"))
	}
	if c.Extraction.Comments.AuthorLinkDistance < 0 || c.Extraction.Comments.InteractionDistance < 0 {
		errs = append(errs, errors.New("comment distances cannot be negative"))
	}

	if c.Download.MaxAttempts <= 0 {
		errs = append(errs, errors.New("max attempts must be positive"))
	}
	if c.Download.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Download.Concurrency > 10 {
		errs = append(errs, errors.New("concurrency should not exceed 10"))
	}
	if c.Download.InterItemDelay < 0 {
		errs = append(errs, errors.New("inter-item delay cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Download.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.Backoff.Multiplier < 1 {
		errs = append(errs, errors.New("backoff multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Download.BaseDirectory = dir
	}
	if n, ok := flags["concurrent"].(int); ok && n > 0 {
		c.Download.Concurrency = n
	}
	if n, ok := flags["max-retries"].(int); ok && n > 0 {
		c.Download.MaxAttempts = n
	}
	if d, ok := flags["delay"].(time.Duration); ok && d >= 0 {
		c.Download.InterItemDelay = d
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if addr, ok := flags["addr"].(string); ok && addr != "" {
		c.Server.Addr = addr
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".socialsnap.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
