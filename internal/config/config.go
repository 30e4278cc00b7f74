package config

import (
	"flag"
	"os"
	"path/filepath"
)

type Config struct {
	Mode            string
	DatabasePath    string
	DatabaseURL     string
	CredentialsFile string
	APIKey          string
	CredsStorePath  string
	LogLevel        string
}

func Load() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".chat-bridge")

	cfg := &Config{}

	flag.StringVar(&cfg.Mode, "mode", getEnv("CB_MODE", "online"), "Run mode: online or offline (in-memory demo backend)")
	flag.StringVar(&cfg.DatabasePath, "db", getEnv("CB_DATABASE_PATH", filepath.Join(dataDir, "chat.db")), "Local cache database file path")
	flag.StringVar(&cfg.DatabaseURL, "database-url", getEnv("CB_DATABASE_URL", ""), "Firebase Realtime Database URL")
	flag.StringVar(&cfg.CredentialsFile, "credentials", getEnv("CB_CREDENTIALS_FILE", filepath.Join(dataDir, "service-account.json")), "Service account credentials file")
	flag.StringVar(&cfg.APIKey, "api-key", getEnv("CB_API_KEY", ""), "Web API key for email/password authentication")
	flag.StringVar(&cfg.CredsStorePath, "creds-store", getEnv("CB_CREDS_STORE", filepath.Join(dataDir, "credentials.enc")), "Saved sign-in credentials file")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("CB_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	// Ensure directories exist
	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)
	os.MkdirAll(filepath.Dir(cfg.CredsStorePath), 0755)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
