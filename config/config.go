package config

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	Admin     AdminConfig     `mapstructure:"admin" yaml:"admin"`
	Extension ExtensionConfig `mapstructure:"extension" yaml:"extension"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Scraping  ScrapingConfig  `mapstructure:"scraping" yaml:"scraping"`
	Analysis  AnalysisConfig  `mapstructure:"analysis" yaml:"analysis"`
	Worker    WorkerConfig    `mapstructure:"worker" yaml:"worker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Email     EmailConfig     `mapstructure:"email" yaml:"email"`
	Tracing   TracingConfig   `mapstructure:"tracing" yaml:"tracing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    string `mapstructure:"port" yaml:"port"`
	Mode    string `mapstructure:"mode" yaml:"mode"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// 每个 IP 每分钟允许发起的分析次数
	AnalysisRateLimit int `mapstructure:"analysis_rate_limit" yaml:"analysis_rate_limit"`
}

// LogConfig 日志配置
type LogConfig struct {
	Mode     string `mapstructure:"mode" yaml:"mode"` // development | production
	SQLLevel string `mapstructure:"sql_level" yaml:"sql_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" yaml:"driver"` // mysql | postgres | sqlite
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	Charset  string `mapstructure:"charset" yaml:"charset"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	Path     string `mapstructure:"path" yaml:"path"` // sqlite 文件路径
	MaxIdle  int    `mapstructure:"max_idle" yaml:"max_idle"`
	MaxOpen  int    `mapstructure:"max_open" yaml:"max_open"`
}

// RedisConfig Redis 配置，Addr 为空时使用进程内锁
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string        `mapstructure:"secret" yaml:"secret"`
	ExpireHours int           `mapstructure:"expire_hours" yaml:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-" yaml:"-"`
}

// AdminConfig 后台管理员账号（密码为 bcrypt 哈希）
type AdminConfig struct {
	Username     string `mapstructure:"username" yaml:"username"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
}

// ExtensionConfig 浏览器扩展接入配置
type ExtensionConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// LLMConfig 大模型服务配置
type LLMConfig struct {
	Primary       string         `mapstructure:"primary" yaml:"primary"`
	FallbackOrder []string       `mapstructure:"fallback_order" yaml:"fallback_order"`
	Temperature   float64        `mapstructure:"temperature" yaml:"temperature"`
	OpenAI        ProviderConfig `mapstructure:"openai" yaml:"openai"`
	DeepSeek      ProviderConfig `mapstructure:"deepseek" yaml:"deepseek"`
	Ollama        ProviderConfig `mapstructure:"ollama" yaml:"ollama"`
}

// ProviderConfig 单个大模型服务配置
type ProviderConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	Model          string `mapstructure:"model" yaml:"model"`
	MaxTokens      int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	TruncateChars  int    `mapstructure:"truncate_chars" yaml:"truncate_chars"`

	// 以下仅 Ollama 使用
	ChunkSize     int `mapstructure:"chunk_size" yaml:"chunk_size"`
	Concurrency   int `mapstructure:"concurrency" yaml:"concurrency"`
	ContextWindow int `mapstructure:"context_window" yaml:"context_window"`
}

// Timeout 返回请求超时时间
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ScrapingConfig 评论抓取配置
type ScrapingConfig struct {
	Service    string           `mapstructure:"service" yaml:"service"` // brightdata | direct
	BrightData BrightDataConfig `mapstructure:"brightdata" yaml:"brightdata"`
	Direct     DirectConfig     `mapstructure:"direct" yaml:"direct"`
}

// BrightDataConfig BrightData datasets v3 配置
type BrightDataConfig struct {
	BaseURL             string `mapstructure:"base_url" yaml:"base_url"`
	APIToken            string `mapstructure:"api_token" yaml:"api_token"`
	DatasetID           string `mapstructure:"dataset_id" yaml:"dataset_id"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	MaxPollAttempts     int    `mapstructure:"max_poll_attempts" yaml:"max_poll_attempts"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// DirectConfig 直接抓取配置
type DirectConfig struct {
	MaxPages       int    `mapstructure:"max_pages" yaml:"max_pages"`
	Cookies        string `mapstructure:"cookies" yaml:"cookies"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// AnalysisConfig 分析参数
type AnalysisConfig struct {
	FakeThreshold        float64 `mapstructure:"fake_threshold" yaml:"fake_threshold"`
	CacheTTLHours        int     `mapstructure:"cache_ttl_hours" yaml:"cache_ttl_hours"`
	LockTTLSeconds       int     `mapstructure:"lock_ttl_seconds" yaml:"lock_ttl_seconds"`
	AlertThrottleMinutes int     `mapstructure:"alert_throttle_minutes" yaml:"alert_throttle_minutes"`
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	Concurrency        int `mapstructure:"concurrency" yaml:"concurrency"`
	PollIntervalMillis int `mapstructure:"poll_interval_millis" yaml:"poll_interval_millis"`
	MaxAttempts        int `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryDelaySeconds  int `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// SchedulerConfig 定时任务配置（robfig/cron 六段表达式，含秒）
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	RetrySpec         string `mapstructure:"retry_spec" yaml:"retry_spec"`
	CleanupSpec       string `mapstructure:"cleanup_spec" yaml:"cleanup_spec"`
	MaxRetries        int    `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBatchSize    int    `mapstructure:"retry_batch_size" yaml:"retry_batch_size"`
	StaleAfterMinutes int    `mapstructure:"stale_after_minutes" yaml:"stale_after_minutes"`
	KeepDays          int    `mapstructure:"keep_days" yaml:"keep_days"`
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	AlertTo  string `mapstructure:"alert_to" yaml:"alert_to"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter" yaml:"exporter"` // "" | stdout | otlp
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// Version 版本号，构建时可通过 -ldflags "-X nullfake/config.Version=..." 覆盖
var Version = "1.0.0"

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置
// 优先级: 环境变量 > 外部配置文件 > 嵌入的默认配置
// configPath: 可选的外部配置文件路径
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 首先加载嵌入的默认配置
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}

	// 2. 尝试加载外部配置文件（可选，用于覆盖默认配置）
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("警告: 无法读取指定配置文件 %s: %v", configPath, err)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/nullfake")
		externalViper.AddConfigPath("$HOME/.nullfake")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("警告: 合并外部配置失败: %v", err)
			}
		}
	}

	// 3. 环境变量覆盖，例如 NULLFAKE_LLM_OPENAI_API_KEY
	v.SetEnvPrefix("NULLFAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// applyDefaults 兜底默认值，防止外部配置写成 0
func (c *Config) applyDefaults() {
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 24
	}
	c.JWT.ExpireTime = time.Duration(c.JWT.ExpireHours) * time.Hour

	if c.Analysis.FakeThreshold <= 0 {
		c.Analysis.FakeThreshold = 85
	}
	if c.Scraping.BrightData.MaxPollAttempts <= 0 {
		c.Scraping.BrightData.MaxPollAttempts = 40
	}
	if c.Scraping.BrightData.PollIntervalSeconds <= 0 {
		c.Scraping.BrightData.PollIntervalSeconds = 15
	}
	if c.LLM.Ollama.ChunkSize <= 0 {
		c.LLM.Ollama.ChunkSize = 25
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.MaxAttempts <= 0 {
		c.Worker.MaxAttempts = 3
	}
}

// MustLoadConfig 加载配置，失败则 panic
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}
	return cfg
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("配置未初始化，请先调用 LoadConfig")
	}
	return GlobalConfig
}

// PrintConfig 打印当前配置（隐藏敏感信息）
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	out, err := Dump(GlobalConfig)
	if err != nil {
		log.Printf("打印配置失败: %v", err)
		return
	}
	log.Printf("当前配置:\n%s", out)
}
