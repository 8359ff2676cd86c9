package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

const (
	ModeDev     = "dev"
	ModeRelease = "release"
)

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// TLS は cert/key 両方指定されたときだけ有効
func (c Certs) Enabled() bool { return c.Cert != "" && c.Key != "" }

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type LendingConfig struct {
	LoanDays int `yaml:"loan_days"`
}

type QRConfig struct {
	Size int `yaml:"size"`
}

type WebConfig struct {
	// ビルド済みフロントのディレクトリ．空なら配信しない
	Dir string `yaml:"dir"`
}

type Config struct {
	Version     string          `yaml:"version"`
	Mode        string          `yaml:"mode"`
	Server      ServerConfig    `yaml:"server"`
	DB          DatabaseConfig  `yaml:"database"`
	Certificate Certs           `yaml:"certificate"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Lending     LendingConfig   `yaml:"lending"`
	QR          QRConfig        `yaml:"qr"`
	Web         WebConfig       `yaml:"web"`
}

func Default() Config {
	return Config{
		Version: "1.0",
		Mode:    ModeDev,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		},
		DB: DatabaseConfig{
			Host:            "127.0.0.1",
			Port:            3306,
			Username:        "library",
			DBName:          "library",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RPS:   10,
			Burst: 20,
		},
		Lending: LendingConfig{LoanDays: 14},
		QR:      QRConfig{Size: 256},
	}
}

// Load は設定ファイルを読み込み，LIBRARY_* 環境変数で上書きする．
// ファイルが存在しない場合はデフォルト値のまま続行する．
func Load(path string) (*Config, error) {
	cfg := Default()

	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LIBRARY_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("LIBRARY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LIBRARY_DB_HOST"); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv("LIBRARY_DB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LIBRARY_DB_PORT: %w", err)
		}
		cfg.DB.Port = p
	}
	if v := os.Getenv("LIBRARY_DB_USER"); v != "" {
		cfg.DB.Username = v
	}
	if v := os.Getenv("LIBRARY_DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}
	if v := os.Getenv("LIBRARY_DB_NAME"); v != "" {
		cfg.DB.DBName = v
	}
	if v := os.Getenv("LIBRARY_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeDev, ModeRelease, c.Mode)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Lending.LoanDays < 0 {
		return fmt.Errorf("lending.loan_days must be >= 0")
	}
	if c.QR.Size <= 0 {
		return fmt.Errorf("qr.size must be > 0")
	}
	return nil
}
