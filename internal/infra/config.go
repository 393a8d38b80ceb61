package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config корневая структура конфигурации сервиса.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Firewall    FirewallConfig    `mapstructure:"firewall"`
	Sponsorship SponsorshipConfig `mapstructure:"sponsorship"`
	Notifier    NotifierConfig    `mapstructure:"notifier"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	// TrustProxy: брать IP клиента из X-Forwarded-For/X-Real-IP. Включать только за своим прокси.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// RedisConfig описывает подключение к Redis (очередь уведомлений).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig публичный ключ для проверки RS256 токенов сессии.
type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	PublicKey     []byte
}

// LedgerConfig параметры транзакционного движка.
type LedgerConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`  // попыток на serialization failure
	RetryDelay   time.Duration `mapstructure:"retry_delay"`   // фиксированная пауза, без экспоненты
	RatingWindow time.Duration `mapstructure:"rating_window"` // одна оценка контента с IP за окно
}

// RuleConfig окно и порог одного правила файрвола.
type RuleConfig struct {
	Window    time.Duration `mapstructure:"window"`
	Threshold int           `mapstructure:"threshold"`
}

// FirewallConfig явный набор правил, без динамического поиска по имени.
type FirewallConfig struct {
	CreateUser             RuleConfig    `mapstructure:"create_user"`
	CreateContentTextRoot  RuleConfig    `mapstructure:"create_content_text_root"`
	CreateContentTextChild RuleConfig    `mapstructure:"create_content_text_child"`
	SideEffectTimeout      time.Duration `mapstructure:"side_effect_timeout"`
}

// SponsorshipConfig стоимость и лимиты спонсорских публикаций.
type SponsorshipConfig struct {
	Cost              int64         `mapstructure:"cost"`
	MaxActiveGlobal   int           `mapstructure:"max_active_global"`
	MaxActivePerOwner int           `mapstructure:"max_active_per_owner"`
	DefaultDuration   time.Duration `mapstructure:"default_duration"`
}

// NotifierConfig доставка уведомлений (best-effort).
type NotifierConfig struct {
	Transport     string        `mapstructure:"transport"` // log, redis
	QueueSize     int           `mapstructure:"queue_size"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	DedupeTTL     time.Duration `mapstructure:"dedupe_ttl"`

	// Настройки Circuit Breaker для транспорта
	CBMaxRequests int           `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// TracingConfig экспорт спанов в OTLP/HTTP. Пустой endpoint = трассировка выключена.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: LEDGER_MAX_ATTEMPTS=3 перекроет ledger.max_attempts
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate отсекает конфигурации, с которыми движок не может работать корректно.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("config: database.url is required")
	}
	if c.Ledger.MaxAttempts < 1 {
		return errors.New("config: ledger.max_attempts must be >= 1")
	}
	for name, r := range map[string]RuleConfig{
		"create_user":               c.Firewall.CreateUser,
		"create_content_text_root":  c.Firewall.CreateContentTextRoot,
		"create_content_text_child": c.Firewall.CreateContentTextChild,
	} {
		if r.Window <= 0 || r.Threshold < 1 {
			return fmt.Errorf("config: firewall.%s needs positive window and threshold", name)
		}
	}
	if c.Sponsorship.MaxActiveGlobal < 1 || c.Sponsorship.MaxActivePerOwner < 1 {
		return errors.New("config: sponsorship caps must be >= 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Нулевые дефолты нужны, чтобы Unmarshal увидел ENV-значения этих ключей
	for _, key := range []string{"server.host", "database.url", "redis.password", "auth.public_key_path", "tracing.endpoint"} {
		v.SetDefault(key, "")
	}
	for _, key := range []string{"server.trust_proxy", "database.migrate_on_start", "tracing.insecure"} {
		v.SetDefault(key, false)
	}
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("ledger.max_attempts", 5)
	v.SetDefault("ledger.retry_delay", 10*time.Millisecond)
	v.SetDefault("ledger.rating_window", 72*time.Hour)

	v.SetDefault("firewall.create_user.window", 30*time.Minute)
	v.SetDefault("firewall.create_user.threshold", 2)
	v.SetDefault("firewall.create_content_text_root.window", 30*time.Minute)
	v.SetDefault("firewall.create_content_text_root.threshold", 4)
	v.SetDefault("firewall.create_content_text_child.window", 10*time.Minute)
	v.SetDefault("firewall.create_content_text_child.threshold", 10)
	v.SetDefault("firewall.side_effect_timeout", 10*time.Second)

	v.SetDefault("sponsorship.cost", 100)
	v.SetDefault("sponsorship.max_active_global", 5)
	v.SetDefault("sponsorship.max_active_per_owner", 1)
	v.SetDefault("sponsorship.default_duration", 7*24*time.Hour)

	v.SetDefault("notifier.transport", "log")
	v.SetDefault("notifier.queue_size", 1000)
	v.SetDefault("notifier.timeout", 5*time.Second)
	v.SetDefault("notifier.rate_per_second", 20)
	v.SetDefault("notifier.burst", 5)
	v.SetDefault("notifier.max_attempts", 3)
	v.SetDefault("notifier.dedupe_ttl", 24*time.Hour)
	v.SetDefault("notifier.cb_max_requests", 3)
	v.SetDefault("notifier.cb_interval", 5*time.Second)
	v.SetDefault("notifier.cb_timeout", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("tracing.service_name", "tabnews-ledger")
}

// loadKeyResource ключ из ENV (Docker/K8s) или из файла по пути из конфига.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
