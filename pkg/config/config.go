package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		Metrics        bool   `mapstructure:"METRICS"`
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
	Vault struct {
		Path      string `mapstructure:"PATH"`
		MountPath string `mapstructure:"MOUNT_PATH"`
	} `mapstructure:"VAULT"`
	Otel struct {
		// Exporter is "grpc", "http" or empty to disable tracing.
		Exporter string `mapstructure:"EXPORTER"`
		Endpoint string `mapstructure:"ENDPOINT"`
		Insecure bool   `mapstructure:"INSECURE"`
	} `mapstructure:"OTEL"`
	Pyroscope struct {
		Addr string `mapstructure:"ADDR"`
	} `mapstructure:"PYROSCOPE"`
	Linkdrop Linkdrop `mapstructure:"LINKDROP"`
}

// Linkdrop holds the contract level constants.
type Linkdrop struct {
	// ContractID is the account the linkdrop contract runs on.
	ContractID string `mapstructure:"CONTRACT_ID"`
	// AccessKeyAllowance is charged on the first send for a key and becomes
	// the gas allowance of the function-call key registered for it.
	AccessKeyAllowance int64  `mapstructure:"ACCESS_KEY_ALLOWANCE"`
	CallbackGas        uint64 `mapstructure:"CALLBACK_GAS"`
	// LedgerBackend is "sql" or "redis".
	LedgerBackend string `mapstructure:"LEDGER_BACKEND"`
	HostQueue     string `mapstructure:"HOST_QUEUE"`
	CallbackQueue string `mapstructure:"CALLBACK_QUEUE"`
	// NodeID seeds the snowflake generator for receipt ids.
	NodeID int64 `mapstructure:"NODE_ID"`
}

const (
	LedgerBackendSQL   = "sql"
	LedgerBackendRedis = "redis"
)

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "linkdrop")
	v.SetDefault("HTTP_SERVER.ADDR", "8080")
	v.SetDefault("HTTP_SERVER.READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_SERVER.IDLE_TIMEOUT", 60*time.Second)
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.SSLMODE", "disable")
	v.SetDefault("DATABASE.TIMEZONE", "UTC")
	v.SetDefault("REDIS.ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS.POOL_SIZE", 10)
	v.SetDefault("REDIS.POOL_TIMEOUT", 5*time.Second)
	v.SetDefault("VAULT.MOUNT_PATH", "secret")
	v.SetDefault("OTEL.INSECURE", true)
	v.SetDefault("LINKDROP.CONTRACT_ID", "linkdrop")
	v.SetDefault("LINKDROP.ACCESS_KEY_ALLOWANCE", 1_000_000)
	v.SetDefault("LINKDROP.CALLBACK_GAS", 20_000_000_000_000)
	v.SetDefault("LINKDROP.LEDGER_BACKEND", LedgerBackendSQL)
	v.SetDefault("LINKDROP.HOST_QUEUE", "host")
	v.SetDefault("LINKDROP.CALLBACK_QUEUE", "critical")
	v.SetDefault("LINKDROP.NODE_ID", 1)
}

// Load reads config.yaml from the working directory (optional) and lets
// environment variables override it, e.g. LINKDROP_CONTRACT_ID.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		zap.L().Info("config.yaml not found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Linkdrop.ContractID == "" {
		return fmt.Errorf("LINKDROP.CONTRACT_ID is required")
	}
	if c.Linkdrop.AccessKeyAllowance < 0 {
		return fmt.Errorf("LINKDROP.ACCESS_KEY_ALLOWANCE must not be negative")
	}
	switch c.Linkdrop.LedgerBackend {
	case LedgerBackendSQL, LedgerBackendRedis:
	default:
		return fmt.Errorf("unknown LINKDROP.LEDGER_BACKEND %q", c.Linkdrop.LedgerBackend)
	}
	switch c.Otel.Exporter {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("unknown OTEL.EXPORTER %q", c.Otel.Exporter)
	}
	if c.TLS.Enable && (c.TLS.CertPath == "" || c.TLS.KeyPath == "") {
		return fmt.Errorf("tls enabled but TLS.CERT_PATH or TLS.KEY_PATH not provided")
	}
	return nil
}

func LoadConfig(p Params) (*Config, error) {
	cfg, err := Load(viper.New())
	if err != nil {
		return nil, err
	}

	if p.Vault != nil && cfg.Vault.Path != "" {
		if err := applyVaultSecrets(context.Background(), p.Vault, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyVaultSecrets(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.Vault.Path))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.Vault.Path, vault.WithMountPath(cfg.Vault.MountPath))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return fmt.Errorf("vault read %s: %w", cfg.Vault.Path, err)
	}
	zap.L().Info("Success Get Secret")

	get := func(key string) string {
		if val, ok := secret.Data.Data[key].(string); ok {
			return val
		}
		return ""
	}

	if v := get("database_user"); v != "" {
		cfg.Database.User = v
	}
	if v := get("database_password"); v != "" {
		cfg.Database.Password = v
	}
	if v := get("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	return nil
}
