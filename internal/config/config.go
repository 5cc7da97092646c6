package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// Session tokens issued to dentists.
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TokenTTLHours int    `mapstructure:"TOKEN_TTL_HOURS"`

	// Payment processor.
	PaymentAPIURL        string `mapstructure:"PAYMENT_API_URL"`
	PaymentSecretKey     string `mapstructure:"PAYMENT_SECRET_KEY"`
	PaymentWebhookSecret string `mapstructure:"PAYMENT_WEBHOOK_SECRET"`

	// Object storage for treatment files.
	StorageBucket   string `mapstructure:"STORAGE_BUCKET"`
	SignedURLSecret string `mapstructure:"SIGNED_URL_SECRET"`

	// Postal-code lookup service.
	CEPAPIURL string `mapstructure:"CEP_API_URL"`

	// Public base URL used to build checkout success/cancel links.
	AppBaseURL string `mapstructure:"APP_BASE_URL"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("TOKEN_TTL_HOURS", 12)
	v.SetDefault("PAYMENT_API_URL", "https://api.stripe.com")
	v.SetDefault("CEP_API_URL", "https://viacep.com.br")
	v.SetDefault("STORAGE_BUCKET", "treatment-files")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL_HOURS")
	v.BindEnv("PAYMENT_API_URL")
	v.BindEnv("PAYMENT_SECRET_KEY")
	v.BindEnv("PAYMENT_WEBHOOK_SECRET")
	v.BindEnv("STORAGE_BUCKET")
	v.BindEnv("SIGNED_URL_SECRET")
	v.BindEnv("CEP_API_URL")
	v.BindEnv("APP_BASE_URL")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the session-token secret and the payment processor credentials must be set;
// a server without them would silently accept forged sessions or unverified
// webhook deliveries.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.PaymentSecretKey == "" {
		return fmt.Errorf("PAYMENT_SECRET_KEY is required when ENV=%q", c.Env)
	}
	if c.PaymentWebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required when ENV=%q", c.Env)
	}
	if c.SignedURLSecret == "" {
		return fmt.Errorf("SIGNED_URL_SECRET is required when ENV=%q", c.Env)
	}
	return nil
}
