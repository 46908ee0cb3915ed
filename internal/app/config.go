package app

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"qbank/internal/db"
)

// Config stores runtime configuration resolved from flags, QBANK_*
// environment variables and an optional qbank.{yaml,toml,json} file.
type Config struct {
	AppEnv              string
	HTTPAddr            string
	DBDriver            string
	DBDSN               string
	DBMaxOpenConns      int
	DBMaxIdleConns      int
	DBConnMaxLifeMins   int
	CSRFEnforced        bool
	AuthRateLimitPerMin int
	ImportRateLimitMin  int
	SessionTTL          time.Duration
	MaxUploadBytes      int64
	LogLevel            string
	LogFormat           string
}

// envKeyReplacer maps flag-style keys to QBANK_* variable names.
var envKeyReplacer = strings.NewReplacer("-", "_")

// NewViper returns a viper instance reading QBANK_* variables and the
// optional qbank config file.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QBANK")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	v.SetConfigName("qbank")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/qbank")
	v.AddConfigPath("/etc/qbank")
	return v
}

var defaults = map[string]any{
	"app-env":                      "development",
	"http-addr":                    ":8080",
	"db-driver":                    db.DriverSQLite,
	"db-dsn":                       "qbank.db",
	"db-max-open-conns":            25,
	"db-max-idle-conns":            25,
	"db-conn-max-lifetime-minutes": 30,
	"csrf-enforced":                false,
	"auth-rate-limit-per-minute":   60,
	"import-rate-limit-per-minute": 30,
	"session-ttl-hours":            24,
	"max-upload-mb":                10,
	"log-level":                    "info",
	"log-format":                   "text",
}

// LoadConfig fills unset keys with defaults and reads the resolved values.
func LoadConfig(v *viper.Viper) Config {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	return Config{
		AppEnv:              strings.ToLower(strings.TrimSpace(v.GetString("app-env"))),
		HTTPAddr:            v.GetString("http-addr"),
		DBDriver:            strings.ToLower(strings.TrimSpace(v.GetString("db-driver"))),
		DBDSN:               v.GetString("db-dsn"),
		DBMaxOpenConns:      positiveOr(v.GetInt("db-max-open-conns"), 25),
		DBMaxIdleConns:      positiveOr(v.GetInt("db-max-idle-conns"), 25),
		DBConnMaxLifeMins:   positiveOr(v.GetInt("db-conn-max-lifetime-minutes"), 30),
		CSRFEnforced:        v.GetBool("csrf-enforced"),
		AuthRateLimitPerMin: positiveOr(v.GetInt("auth-rate-limit-per-minute"), 60),
		ImportRateLimitMin:  positiveOr(v.GetInt("import-rate-limit-per-minute"), 30),
		SessionTTL:          time.Duration(positiveOr(v.GetInt("session-ttl-hours"), 24)) * time.Hour,
		MaxUploadBytes:      int64(positiveOr(v.GetInt("max-upload-mb"), 10)) << 20,
		LogLevel:            v.GetString("log-level"),
		LogFormat:           v.GetString("log-format"),
	}
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) PoolConfig() db.PoolConfig {
	return db.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(c.DBConnMaxLifeMins) * time.Minute,
	}
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
