package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Stripe      StripeConfig
	PayPal      PayPalConfig
	Square      SquareConfig
	Printify    PrintifyConfig
	Email       EmailConfig
	SMS         SMSConfig
	API         APIConfig
	LogLevel    string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type StripeConfig struct {
	SecretKey string
	BaseURL   string // override for tests; default https://api.stripe.com
}

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // e.g. https://api-m.paypal.com; sandbox in development
}

type SquareConfig struct {
	AccessToken string
	LocationID  string
	BaseURL     string
}

// PrintifyConfig is used to call the print-on-demand partner API
type PrintifyConfig struct {
	APIKey  string
	ShopID  string
	BaseURL string
}

type EmailConfig struct {
	APIKey          string
	BaseURL         string
	FromAddress     string
	FallbackAddress string   // used when the customer has no email on file
	InternalBcc     []string // fixed internal distribution list
}

type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

type APIConfig struct {
	AdminKeyHash string // bcrypt hash of the admin API key
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if .env doesn't exist, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "8080"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrViper("DB_HOST", "localhost"),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "orderapi"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Stripe: StripeConfig{
			SecretKey: strings.TrimSpace(getEnvOrViper("STRIPE_SECRET_KEY", "")),
			BaseURL:   getEnvOrViper("STRIPE_BASE_URL", "https://api.stripe.com"),
		},
		PayPal: PayPalConfig{
			ClientID:     strings.TrimSpace(getEnvOrViper("PAYPAL_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getEnvOrViper("PAYPAL_CLIENT_SECRET", "")),
			BaseURL:      getEnvOrViper("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com"),
		},
		Square: SquareConfig{
			AccessToken: strings.TrimSpace(getEnvOrViper("SQUARE_ACCESS_TOKEN", "")),
			LocationID:  strings.TrimSpace(getEnvOrViper("SQUARE_LOCATION_ID", "")),
			BaseURL:     getEnvOrViper("SQUARE_BASE_URL", "https://connect.squareup.com"),
		},
		Printify: PrintifyConfig{
			APIKey:  strings.TrimSpace(getEnvOrViper("PRINTIFY_API_KEY", "")),
			ShopID:  strings.TrimSpace(getEnvOrViper("PRINTIFY_SHOP_ID", "")),
			BaseURL: getEnvOrViper("PRINTIFY_BASE_URL", "https://api.printify.com"),
		},
		Email: EmailConfig{
			APIKey:          strings.TrimSpace(getEnvOrViper("EMAIL_API_KEY", "")),
			BaseURL:         getEnvOrViper("EMAIL_BASE_URL", "https://api.sendgrid.com"),
			FromAddress:     getEnvOrViper("EMAIL_FROM_ADDRESS", "orders@printcraft.example"),
			FallbackAddress: getEnvOrViper("EMAIL_FALLBACK_ADDRESS", "support@printcraft.example"),
			InternalBcc:     splitList(getEnvOrViper("EMAIL_INTERNAL_BCC", "")),
		},
		SMS: SMSConfig{
			AccountSID: strings.TrimSpace(getEnvOrViper("SMS_ACCOUNT_SID", "")),
			AuthToken:  strings.TrimSpace(getEnvOrViper("SMS_AUTH_TOKEN", "")),
			FromNumber: strings.TrimSpace(getEnvOrViper("SMS_FROM_NUMBER", "")),
			BaseURL:    getEnvOrViper("SMS_BASE_URL", "https://api.twilio.com"),
		},
		API: APIConfig{
			AdminKeyHash: getEnvOrViper("ADMIN_API_KEY_HASH", ""),
		},
		LogLevel: getEnvOrViper("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.Printify.ShopID == "" && cfg.Printify.APIKey != "" {
		return nil, fmt.Errorf("PRINTIFY_SHOP_ID is required when PRINTIFY_API_KEY is set")
	}

	return cfg, nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
