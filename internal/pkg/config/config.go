package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
	Order     OrderConfig     `mapstructure:"order"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	Port         string `mapstructure:"port"`
	SSLMode      string `mapstructure:"sslmode"`
	TimeZone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN gorm postgres 驱动使用的连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone)
}

// URL golang-migrate 使用的连接串
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// OrderConfig 下单相关配置
type OrderConfig struct {
	// NumberAttempts 随机订单号碰撞时的最大重试次数
	NumberAttempts int `mapstructure:"number_attempts"`
}

// AnalyticsConfig 销售分析配置
type AnalyticsConfig struct {
	Timezone          string          `mapstructure:"timezone"`
	CacheTTL          time.Duration   `mapstructure:"cache_ttl"`
	TopProductsLimit  int             `mapstructure:"top_products_limit"`
	TopCustomersLimit int             `mapstructure:"top_customers_limit"`
	DefaultStatuses   DefaultStatuses `mapstructure:"default_statuses"`
}

// DefaultStatuses 每个分析接口在调用方未指定 statuses 时使用的状态集合，空表示不过滤
type DefaultStatuses struct {
	Summary      []string `mapstructure:"summary"`
	Timeseries   []string `mapstructure:"timeseries"`
	TopProducts  []string `mapstructure:"top_products"`
	TopCustomers []string `mapstructure:"top_customers"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type WorkerConfig struct {
	Workers   int `mapstructure:"workers"`
	QueueSize int `mapstructure:"queue_size"`
	MaxRetry  int `mapstructure:"max_retry"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

var GlobalConfig Config

var knownStatuses = map[string]bool{
	"pending": true, "paid": true, "shipped": true, "completed": true, "canceled": true,
}

// Validate 验证配置
func (c *Config) Validate() error {
	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// Redis 配置验证
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("invalid analytics timezone %q: %w", c.Analytics.Timezone, err)
	}
	groups := [][]string{
		c.Analytics.DefaultStatuses.Summary,
		c.Analytics.DefaultStatuses.Timeseries,
		c.Analytics.DefaultStatuses.TopProducts,
		c.Analytics.DefaultStatuses.TopCustomers,
	}
	for _, group := range groups {
		for _, s := range group {
			if !knownStatuses[s] {
				return fmt.Errorf("unknown order status %q in analytics.default_statuses", s)
			}
		}
	}

	if c.Order.NumberAttempts <= 0 {
		return errors.New("order.number_attempts must be positive")
	}

	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("jwt.expire", 24)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)
	v.SetDefault("order.number_attempts", 10)
	v.SetDefault("analytics.timezone", "UTC")
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("analytics.top_products_limit", 10)
	v.SetDefault("analytics.top_customers_limit", 5)
	v.SetDefault("analytics.default_statuses.summary", []string{})
	v.SetDefault("analytics.default_statuses.timeseries", []string{"paid", "completed"})
	v.SetDefault("analytics.default_statuses.top_products", []string{"paid", "completed"})
	v.SetDefault("analytics.default_statuses.top_customers", []string{"paid", "completed"})
	v.SetDefault("rate_limit.qps", 100)
	v.SetDefault("rate_limit.burst", 200)
	v.SetDefault("worker.workers", 4)
	v.SetDefault("worker.queue_size", 1000)
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("cors.allow_origins", []string{"*"})
}

// Load 读取配置文件并绑定环境变量，不做校验
func Load(paths ...string) (Config, error) {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量，例如 DATABASE_HOST 覆盖 database.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}
	if cfg.App.Env == "" {
		cfg.App.Env = env
	}
	return cfg, nil
}

// LoadConfig 加载配置到 GlobalConfig，校验失败直接退出
func LoadConfig() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 验证配置
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	GlobalConfig = cfg
	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
