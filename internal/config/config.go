// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Identity      IdentityConfig      `mapstructure:"identity"`
	Ledger        LedgerConfig        `mapstructure:"ledger"`
	Search        SearchConfig        `mapstructure:"search"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chat          ChatConfig          `mapstructure:"chat"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储身份令牌相关的配置。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Enabled 为 false 时用量事件直接写入账本。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// IdentityConfig 描述 userEmail cookie 的行为。
type IdentityConfig struct {
	CookieName   string        `mapstructure:"cookie_name"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// LedgerConfig 选择用量账本的实现，并配置读超时与看板缓存。
type LedgerConfig struct {
	Backend          string        `mapstructure:"backend"` // durable | memory
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	SnapshotTimeout  time.Duration `mapstructure:"snapshot_timeout"`
	SnapshotCacheTTL time.Duration `mapstructure:"snapshot_cache_ttl"`
}

// SearchConfig 配置网页搜索网关。
type SearchConfig struct {
	Provider       string        `mapstructure:"provider"` // snippet | elasticsearch
	URL            string        `mapstructure:"url"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	MaxResults     int           `mapstructure:"max_results"`
}

// LLMConfig 存储三个补全后端的配置。
type LLMConfig struct {
	Chat     LLMChatConfig     `mapstructure:"chat"`
	Generate LLMGenerateConfig `mapstructure:"generate"`
	Text     LLMTextConfig     `mapstructure:"text"`
}

// LLMChatConfig 是 OpenAI 兼容的结构化聊天补全接口（Groq）。
type LLMChatConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMGenerateConfig 是单轮直接生成接口（Gemini generateContent）。
type LLMGenerateConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMTextConfig 是纯文本生成接口（GET，prompt 编码在 URL 中）。
type LLMTextConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// ChatConfig 配置编排器的展示节奏。
type ChatConfig struct {
	DefaultModel    string        `mapstructure:"default_model"`
	DisplayDelay    time.Duration `mapstructure:"display_delay"`
	ThinkingTimeout time.Duration `mapstructure:"thinking_timeout"`
}

// RateLimitConfig 配置代理接口的按 IP 限流。
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// setDefaults 与原前端的常量保持一致。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jwt.token_expire_hours", 24)
	v.SetDefault("kafka.topic", "usage-events")
	v.SetDefault("kafka.group_id", "fortec-chat-usage")
	v.SetDefault("elasticsearch.index_name", "web_snippets")
	v.SetDefault("minio.bucket_name", "chat-transcripts")
	v.SetDefault("identity.cookie_name", "userEmail")
	v.SetDefault("identity.cookie_max_age", 365*24*time.Hour)
	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.read_timeout", 3*time.Second)
	v.SetDefault("ledger.snapshot_timeout", 5*time.Second)
	v.SetDefault("ledger.snapshot_cache_ttl", time.Minute)
	v.SetDefault("search.provider", "snippet")
	v.SetDefault("search.url", "https://search.snapzion.com/get-snippets")
	v.SetDefault("search.attempt_timeout", 8*time.Second)
	v.SetDefault("search.max_retries", 2)
	v.SetDefault("search.backoff_base", time.Second)
	v.SetDefault("search.backoff_max", 4*time.Second)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("llm.chat.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.chat.timeout", 30*time.Second)
	v.SetDefault("llm.generate.base_url", "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent")
	v.SetDefault("llm.generate.timeout", 30*time.Second)
	v.SetDefault("llm.text.base_url", "https://text.pollinations.ai")
	v.SetDefault("llm.text.timeout", 30*time.Second)
	v.SetDefault("llm.text.max_retries", 2)
	v.SetDefault("llm.text.backoff_base", time.Second)
	v.SetDefault("chat.default_model", "mistral")
	v.SetDefault("chat.display_delay", time.Second)
	v.SetDefault("chat.thinking_timeout", 20*time.Second)
	v.SetDefault("rate_limit.requests_per_second", 2.0)
	v.SetDefault("rate_limit.burst", 10)
}

// Load 从指定路径读取 YAML 配置；环境变量 FORTEC_* 可覆盖同名键。
func Load(configPath string) (*viper.Viper, Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("fortec")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return nil, cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return v, cfg, nil
}

// Init 初始化配置加载，并将结果写入全局 Conf。失败时直接 panic。
func Init(configPath string) *viper.Viper {
	v, cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
	return v
}

// Watch 监听配置文件变化，仅把新的日志级别交给 onLogLevel；其余配置需要重启生效。
func Watch(v *viper.Viper, onLogLevel func(level string)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onLogLevel(v.GetString("log.level"))
	})
	v.WatchConfig()
}
