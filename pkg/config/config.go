package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	PublicURL  string `mapstructure:"PUBLIC_URL"`

	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`

	Database struct {
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSL_MODE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`

	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`

	Minio struct {
		Endpoint   string `mapstructure:"ENDPOINT"`
		AccessKey  string `mapstructure:"ACCESS_KEY"`
		SecretKey  string `mapstructure:"SECRET_KEY"`
		Secure     bool   `mapstructure:"SECURE"`
		BucketName string `mapstructure:"BUCKET_NAME"`
	} `mapstructure:"MINIO"`

	SMTP struct {
		Host      string `mapstructure:"HOST"`
		Port      int    `mapstructure:"PORT"`
		Username  string `mapstructure:"USERNAME"`
		Password  string `mapstructure:"PASSWORD"`
		FromName  string `mapstructure:"FROM_NAME"`
		FromEmail string `mapstructure:"FROM_EMAIL"`
	} `mapstructure:"SMTP"`

	Meta struct {
		GraphURL  string `mapstructure:"GRAPH_URL"`
		AppID     string `mapstructure:"APP_ID"`
		AppSecret string `mapstructure:"APP_SECRET"`
	} `mapstructure:"META"`

	LinkedIn struct {
		Enabled      bool   `mapstructure:"ENABLED"`
		APIURL       string `mapstructure:"API_URL"`
		ClientID     string `mapstructure:"CLIENT_ID"`
		ClientSecret string `mapstructure:"CLIENT_SECRET"`
	} `mapstructure:"LINKEDIN"`

	Publish struct {
		Cron           string        `mapstructure:"CRON"`
		BatchLimit     int           `mapstructure:"BATCH_LIMIT"`
		MaxAttempts    int           `mapstructure:"MAX_ATTEMPTS"`
		MinRetryDelay  time.Duration `mapstructure:"MIN_RETRY_DELAY"`
		RetryPassDelay time.Duration `mapstructure:"RETRY_PASS_DELAY"`
		StuckAfter     time.Duration `mapstructure:"STUCK_AFTER"`
		RefreshHorizon time.Duration `mapstructure:"REFRESH_HORIZON"`
		RefreshLockTTL time.Duration `mapstructure:"REFRESH_LOCK_TTL"`
	} `mapstructure:"PUBLISH"`

	// SecretKey is the 32-byte hex key used to seal platform tokens at rest.
	SecretKey string `mapstructure:"SECRET_KEY"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	setDefaults(config)

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	return &cfg
}

// setDefaults covers the publish tuning knobs. The retry delays were carried
// over from the previous system; they are tuning parameters, not contracts.
func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "socialplane")
	v.SetDefault("HTTP_SERVER.ADDR", ":8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("META.GRAPH_URL", "https://graph.facebook.com/v19.0")
	v.SetDefault("LINKEDIN.API_URL", "https://api.linkedin.com/v2")
	v.SetDefault("PUBLISH.CRON", "*/5 * * * *")
	v.SetDefault("PUBLISH.BATCH_LIMIT", 20)
	v.SetDefault("PUBLISH.MAX_ATTEMPTS", 3)
	v.SetDefault("PUBLISH.MIN_RETRY_DELAY", time.Minute)
	v.SetDefault("PUBLISH.RETRY_PASS_DELAY", 30*time.Second)
	v.SetDefault("PUBLISH.STUCK_AFTER", 10*time.Minute)
	v.SetDefault("PUBLISH.REFRESH_HORIZON", 7*24*time.Hour)
	v.SetDefault("PUBLISH.REFRESH_LOCK_TTL", 30*time.Second)
}
