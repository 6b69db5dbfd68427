package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mico/crypto-sentiment-analysis/internal/coins"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration marks every error that must abort a run before any fetch.
var ErrConfiguration = errors.New("configuration error")

const DefaultPath = "config.yaml"

// Config is built once at process start and passed to every component.
type Config struct {
	Subreddits   []string     `mapstructure:"subreddits"`
	GeneralTerms []string     `mapstructure:"general_terms"`
	DBPath       string       `mapstructure:"db_path"`
	PostsLimit   int          `mapstructure:"posts_limit"`
	CoinKeywords []coins.Coin `mapstructure:"-"`

	Reddit    RedditConfig    `mapstructure:"reddit"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	News      NewsConfig      `mapstructure:"news"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type RedditConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	TokenURL          string        `mapstructure:"token_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Strategies        []string      `mapstructure:"strategies"`
	TimeWindow        string        `mapstructure:"time_window"`
}

type IngestConfig struct {
	GeneralPostsLimit int           `mapstructure:"general_posts_limit"`
	ItemDelay         time.Duration `mapstructure:"item_delay"`
	SourceDelay       time.Duration `mapstructure:"source_delay"`
	GeneralDelay      time.Duration `mapstructure:"general_delay"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	ConflictRetries   int           `mapstructure:"conflict_retries"`
	Schedule          time.Duration `mapstructure:"schedule"`
}

type NewsConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Feeds     []string      `mapstructure:"feeds"`
	ItemLimit int           `mapstructure:"item_limit"`
	Domain    string        `mapstructure:"domain"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SentimentConfig struct {
	Scorer       string             `mapstructure:"scorer"`
	OpenAIModel  string             `mapstructure:"openai_model"`
	OpenAIAPIKey string             `mapstructure:"openai_api_key"`
	Lexicon      map[string]float64 `mapstructure:"lexicon"`
}

type AnalyticsConfig struct {
	PositiveThreshold float64       `mapstructure:"positive_threshold"`
	NegativeThreshold float64       `mapstructure:"negative_threshold"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	TopN              int           `mapstructure:"top_n"`
	NoiseSymbols      []string      `mapstructure:"noise_symbols"`
}

type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the YAML document at path, applies defaults and environment
// overrides (prefix CRYPTO_SENTIMENT_) and validates the result.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: config path is required", ErrConfiguration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file: %v", ErrConfiguration, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("CRYPTO_SENTIMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindWellKnownEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: parse config file: %v", ErrConfiguration, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", ErrConfiguration, err)
	}

	cfg.CoinKeywords, err = decodeCoinKeywords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if cfg.Storage.Driver == "sqlite" && strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = "crypto_data.db"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("posts_limit", 100)
	v.SetDefault("db_path", "crypto_data.db")

	v.SetDefault("reddit.base_url", "https://oauth.reddit.com")
	v.SetDefault("reddit.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("reddit.timeout", "20s")
	v.SetDefault("reddit.requests_per_minute", 60)
	v.SetDefault("reddit.strategies", []string{"hot", "new", "top"})
	v.SetDefault("reddit.time_window", "week")

	v.SetDefault("ingest.general_posts_limit", 75)
	v.SetDefault("ingest.item_delay", "100ms")
	v.SetDefault("ingest.source_delay", "5s")
	v.SetDefault("ingest.general_delay", "3s")
	v.SetDefault("ingest.max_retries", 2)
	v.SetDefault("ingest.retry_base_delay", "1s")
	v.SetDefault("ingest.conflict_retries", 1)
	v.SetDefault("ingest.schedule", "0s")

	v.SetDefault("news.enabled", false)
	v.SetDefault("news.item_limit", 50)
	v.SetDefault("news.domain", "cryptopanic.com")
	v.SetDefault("news.timeout", "20s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("sentiment.scorer", "vader")
	v.SetDefault("sentiment.openai_model", "gpt-4o-mini")
	v.SetDefault("sentiment.openai_api_key", "")

	v.SetDefault("analytics.positive_threshold", 0.3)
	v.SetDefault("analytics.negative_threshold", -0.3)
	v.SetDefault("analytics.cache_ttl", "90s")
	v.SetDefault("analytics.top_n", 5)
	v.SetDefault("analytics.noise_symbols", []string{"OG", "U"})

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)

	v.SetDefault("redis.url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindWellKnownEnv(v *viper.Viper) {
	_ = v.BindEnv("storage.dsn", "CRYPTO_SENTIMENT_STORAGE_DSN", "DATABASE_URL")
	_ = v.BindEnv("redis.url", "CRYPTO_SENTIMENT_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("telegram.bot_token", "CRYPTO_SENTIMENT_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("sentiment.openai_api_key", "CRYPTO_SENTIMENT_SENTIMENT_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("server.api_key", "CRYPTO_SENTIMENT_SERVER_API_KEY", "API_KEY")
}

// decodeCoinKeywords walks the YAML node tree so coins keep document order
// and symbol case.
func decodeCoinKeywords(data []byte) ([]coins.Coin, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse coin_keywords: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config document must be a mapping")
	}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "coin_keywords" {
			continue
		}
		node := root.Content[i+1]
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("coin_keywords must be a mapping of symbol to keyword list")
		}
		out := make([]coins.Coin, 0, len(node.Content)/2)
		for j := 0; j+1 < len(node.Content); j += 2 {
			symbol := strings.TrimSpace(node.Content[j].Value)
			var keywords []string
			if err := node.Content[j+1].Decode(&keywords); err != nil {
				return nil, fmt.Errorf("coin_keywords.%s: %w", symbol, err)
			}
			out = append(out, coins.Coin{Symbol: symbol, Keywords: keywords})
		}
		return out, nil
	}
	return nil, nil
}

// CoinTable builds the immutable keyword table.
func (c *Config) CoinTable() (*coins.Table, error) {
	t, err := coins.NewTable(c.CoinKeywords)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return t, nil
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Subreddits) == 0 && !(c.News.Enabled && len(c.News.Feeds) > 0) {
		add("subreddits must contain at least one subreddit")
	}
	if len(c.CoinKeywords) == 0 {
		add("coin_keywords must contain at least one coin")
	}
	if _, err := coins.NewTable(c.CoinKeywords); err != nil {
		add("coin_keywords: %v", err)
	}
	if c.PostsLimit < 1 || c.PostsLimit > 100 {
		add("posts_limit must be between 1 and 100")
	}
	if c.Ingest.GeneralPostsLimit < 1 || c.Ingest.GeneralPostsLimit > 100 {
		add("ingest.general_posts_limit must be between 1 and 100")
	}
	if c.Ingest.ItemDelay < 0 || c.Ingest.SourceDelay < 0 || c.Ingest.GeneralDelay < 0 {
		add("ingest delays must not be negative")
	}
	if c.Ingest.MaxRetries < 0 {
		add("ingest.max_retries must not be negative")
	}
	if c.Reddit.RequestsPerMinute < 1 {
		add("reddit.requests_per_minute must be at least 1")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			add("db_path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			add("storage.dsn (or DATABASE_URL) is required for the postgres driver")
		}
	case "memory":
	default:
		add("storage.driver must be one of: sqlite, postgres, memory")
	}

	switch c.Sentiment.Scorer {
	case "vader":
	case "openai":
		if strings.TrimSpace(c.Sentiment.OpenAIAPIKey) == "" {
			add("sentiment.openai_api_key (or OPENAI_API_KEY) is required for the openai scorer")
		}
	default:
		add("sentiment.scorer must be one of: vader, openai")
	}

	if c.Analytics.NegativeThreshold > c.Analytics.PositiveThreshold {
		add("analytics.negative_threshold must not exceed analytics.positive_threshold")
	}
	if c.News.Enabled && len(c.News.Feeds) == 0 {
		add("news.feeds must contain at least one feed when news is enabled")
	}
	if c.Telegram.Enabled && strings.TrimSpace(c.Telegram.BotToken) == "" {
		add("telegram.bot_token is required when telegram is enabled")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		add("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "logfmt": true}
	if !validFormats[c.Logging.Format] {
		add("logging.format must be one of: json, text, logfmt")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
