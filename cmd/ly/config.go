package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/zulandar/leadyard/internal/config"
	"github.com/zulandar/leadyard/internal/db"
	"gorm.io/gorm"
)

// loadEnvFiles loads .env and then .env.local, when present, so secrets
// can stay out of leadyard.yaml. Variables already set win over .env;
// .env.local overrides both.
func loadEnvFiles() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("load .env.local: %w", err)
		}
	}
	return nil
}

func loadConfig(configPath string) (*config.Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func connectFromConfig(configPath string, debug bool) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := db.Open(cfg.Database, debug)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", describeDB(cfg.Database), err)
	}
	return cfg, gormDB, nil
}

func describeDB(c config.DatabaseConfig) string {
	if c.Driver == "sqlite" {
		return "sqlite:" + c.Path
	}
	return fmt.Sprintf("mysql:%s@%s:%d", c.Name, c.Host, c.Port)
}
