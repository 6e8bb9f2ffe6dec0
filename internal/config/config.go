package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string           `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Redis      RedisConfig      `yaml:"redis"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Wallet     WalletConfig     `yaml:"wallet"`
	Chat       ChatConfig       `yaml:"chat"`
	Worker     WorkerConfig     `yaml:"worker"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Admin      AdminConfig      `yaml:"admin"`
}

type HTTPConfig struct {
	Address      string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	// AuthRateLimit is requests per second per IP on signup/login.
	AuthRateLimit float64 `yaml:"auth_rate_limit" env:"HTTP_AUTH_RATE_LIMIT" env-default:"5"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"-" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"gruzztop"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"10"`
}

// DSN renders the connection string understood by both pgx and lib/pq.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

type JWTConfig struct {
	Secret string        `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TTL    time.Duration `yaml:"ttl" env:"JWT_TTL" env-default:"72h"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"127.0.0.1:6379"`
	Password string        `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"5m"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"-" env:"TELEGRAM_BOT_TOKEN"`
	AdminChatID int64  `yaml:"admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`
}

// WalletConfig holds GT Coin amounts. One coin equals one currency unit.
type WalletConfig struct {
	HighPriorityFee   int64 `yaml:"high_priority_fee" env:"WALLET_HIGH_PRIORITY_FEE" env-default:"50"`
	UrgentPriorityFee int64 `yaml:"urgent_priority_fee" env:"WALLET_URGENT_PRIORITY_FEE" env-default:"100"`
	MinDeposit        int64 `yaml:"min_deposit" env:"WALLET_MIN_DEPOSIT" env-default:"100"`
	MinWithdrawal     int64 `yaml:"min_withdrawal" env:"WALLET_MIN_WITHDRAWAL" env-default:"100"`
}

type ChatConfig struct {
	RetentionWindow   time.Duration `yaml:"retention_window" env:"CHAT_RETENTION_WINDOW" env-default:"720h"`
	PurgeSchedule     string        `yaml:"purge_schedule" env:"CHAT_PURGE_SCHEDULE" env-default:"@hourly"`
	MessagesPerSecond float64       `yaml:"messages_per_second" env:"CHAT_MESSAGES_PER_SECOND" env-default:"2"`
	MessageBurst      int           `yaml:"message_burst" env:"CHAT_MESSAGE_BURST" env-default:"10"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"5"`
}

// AdminConfig enables the one-off admin bootstrap endpoint when the secret is set.
type AdminConfig struct {
	BootstrapSecret string `yaml:"-" env:"ADMIN_BOOTSTRAP_SECRET"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// Load reads configuration from the YAML file at path, if given, and from the
// environment. A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads the configuration from path or CONFIG_PATH and exits on error.
func MustLoad(path string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
