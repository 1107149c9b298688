package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig            `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig          `mapstructure:"database"` // Postgres配置
	Cache    CacheConfig             `mapstructure:"cache"`    // 缓存新鲜度配置
	Picks    PicksConfig             `mapstructure:"picks"`    // 投注决策配置
	Sync     SyncConfig              `mapstructure:"sync"`     // 定时任务配置
	Sources  map[string]SourceConfig `mapstructure:"sources"`  // 上游数据源配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port     int    `mapstructure:"port"`      // 服务端口
	Mode     string `mapstructure:"mode"`      // Gin运行模式：debug/release/test
	LogLevel string `mapstructure:"log_level"` // 日志级别：debug/info/warn
}

// DatabaseConfig Postgres数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// CacheConfig 各数据族的新鲜度窗口（小时）。球队主数据只要存在就视为新鲜，不设窗口。
type CacheConfig struct {
	PrimarySource       string `mapstructure:"primary_source"`         // 默认数据源名
	TeamStatsTTLHours   int    `mapstructure:"team_stats_ttl_hours"`   // 赛季统计快照
	GamesTTLHours       int    `mapstructure:"games_ttl_hours"`        // 赛程列表
	RecentGamesTTLHours int    `mapstructure:"recent_games_ttl_hours"` // 近期完赛结果
	RetentionDays       int    `mapstructure:"retention_days"`         // 历史比赛保留天数
}

// PicksConfig 投注决策相关常量
type PicksConfig struct {
	HomeCourtAdvantage float64 `mapstructure:"home_court_advantage"` // 主场优势（分）
	RecentGamesLimit   int     `mapstructure:"recent_games_limit"`   // 近期战绩取场数
	DefaultOdds        int     `mapstructure:"default_odds"`         // 无盘口报价时的默认美式赔率
	MaxOdds            int     `mapstructure:"max_odds"`             // best bet 赔率下限（如 -125，再差不选）
	BestBetCount       int     `mapstructure:"best_bet_count"`       // 每日 best bet 数量 K
	MinConfidence      float64 `mapstructure:"min_confidence"`       // best bet 最低置信度
	EnableMoneyline    bool    `mapstructure:"enable_moneyline"`     // 是否出独赢决策（默认关）
}

// SyncConfig 定时任务配置
type SyncConfig struct {
	Timezone    string `mapstructure:"timezone"`     // 计算"今天"用的时区
	RefreshCron string `mapstructure:"refresh_cron"` // 缓存刷新Cron表达式
	ResultsCron string `mapstructure:"results_cron"` // 锁定+结果同步Cron表达式
	RefreshDays int    `mapstructure:"refresh_days"` // 每次刷新向后覆盖的天数
}

// SourceConfig 单个上游数据源的独立配置
type SourceConfig struct {
	BaseURL    string `mapstructure:"base_url"`    // API基础地址
	Timeout    int    `mapstructure:"timeout"`     // 请求超时（秒）
	RetryCount int    `mapstructure:"retry_count"` // 429/5xx重试次数
	APIKey     string `mapstructure:"api_key"`     // Bearer Token
	Proxy      string `mapstructure:"proxy"`       // 代理地址
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）。
// 配置文件缺失时用默认值启动（所有键都有默认值，DSN 与 API Key 走环境变量）。
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	setDefaults()

	// 2. 读取 config.yaml（可缺省）
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml > 默认值）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", time.Hour)
	viper.SetDefault("cache.primary_source", "cbbd")
	viper.SetDefault("cache.team_stats_ttl_hours", 12)
	viper.SetDefault("cache.games_ttl_hours", 24)
	viper.SetDefault("cache.recent_games_ttl_hours", 6)
	viper.SetDefault("cache.retention_days", 30)
	viper.SetDefault("picks.home_court_advantage", 3.5)
	viper.SetDefault("picks.recent_games_limit", 10)
	viper.SetDefault("picks.default_odds", -110)
	viper.SetDefault("picks.max_odds", -125)
	viper.SetDefault("picks.best_bet_count", 5)
	viper.SetDefault("picks.min_confidence", 0.35)
	viper.SetDefault("picks.enable_moneyline", false)
	viper.SetDefault("sync.timezone", "America/New_York")
	viper.SetDefault("sync.refresh_cron", "0 8 * * *")
	viper.SetDefault("sync.results_cron", "30 23 * * *")
	viper.SetDefault("sync.refresh_days", 7)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]SourceConfig)
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CBBD_API_KEY"); v != "" {
		src := cfg.Sources["cbbd"]
		src.APIKey = v
		cfg.Sources["cbbd"] = src
	}
	if v := os.Getenv("CBBD_PROXY"); v != "" {
		src := cfg.Sources["cbbd"]
		src.Proxy = v
		cfg.Sources["cbbd"] = src
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
}

// GetGORMConfig 获取数据库配置（适配GORM）。
// TranslateError 打开后，唯一键冲突统一映射为 gorm.ErrDuplicatedKey，
// 决策写入的并发兜底依赖这个映射。
func (d *DatabaseConfig) GetGORMConfig() gorm.Config {
	return gorm.Config{TranslateError: true}
}
