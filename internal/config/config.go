package config

import (
	"log"
	"os"
)

const (
	defaultDBPath = "./resep.db"
	defaultPort   = "8080"
	defaultEnv    = "dev"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	DBPath string
	Port   string
	Env    string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = loadDotEnv(".env")

	cfg := Config{
		DBPath: os.Getenv("DB_PATH"),
		Port:   os.Getenv("PORT"),
		Env:    os.Getenv("APP_ENV"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		log.Print("warning: APP_ENV is not set, assuming dev")
		cfg.Env = defaultEnv
	}

	return cfg
}

// IsDev reports whether the app runs in development mode, where migrations
// and the demo seed run automatically at startup.
func (c Config) IsDev() bool {
	return c.Env == defaultEnv
}
