package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port               string
	DBConn             string
	LogLevel           string
	JWTSecret          string
	HMACSecret         string
	CampaignURL        string
	SMTPHost           string
	SMTPPort           string
	SMTPUsername       string
	SMTPPassword       string
	SenderEmail        string
	SeasonLength       int     // days per season in the simulated calendar
	ReinvestmentRatio  float64 // default ratio for newly opened accounts
	SettlementSchedule string  // cron spec of the daily settlement pass
}

// NewConfig loads configuration from environment variables. A .env file is
// loaded first when present.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBConn:             getEnv("DB_CONN", "host=localhost port=5432 user=ironbank password=ironbank dbname=ironbank sslmode=disable"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		HMACSecret:         getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		CampaignURL:        getEnv("CAMPAIGN_URL", "http://localhost:9090"),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SenderEmail:        getEnv("SENDER_EMAIL", "no-reply@ironbank.local"),
		SeasonLength:       getEnvInt("SEASON_LENGTH", 21),
		ReinvestmentRatio:  getEnvFloat("REINVESTMENT_RATIO", 0.2),
		SettlementSchedule: getEnv("SETTLEMENT_SCHEDULE", "@daily"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET is required")
	}
	if cfg.CampaignURL == "" {
		return nil, fmt.Errorf("CAMPAIGN_URL is required")
	}
	if cfg.SeasonLength <= 0 {
		return nil, fmt.Errorf("SEASON_LENGTH must be positive")
	}
	if cfg.ReinvestmentRatio < 0 || cfg.ReinvestmentRatio > 1 {
		return nil, fmt.Errorf("REINVESTMENT_RATIO must be within [0,1]")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}
