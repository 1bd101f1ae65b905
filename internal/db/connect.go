package db

import (
	"fmt"

	"github.com/zulandar/leadyard/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the lead store.
func DSN(user, password, host string, port int, database string) string {
	auth := user
	if password != "" {
		auth = user + ":" + password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", auth, host, port, database)
}

// Open connects to the store selected by cfg.Driver.
func Open(cfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return ConnectSQLite(cfg.Path, debug)
	case "mysql", "":
		return Connect(cfg, debug)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Connect opens a GORM connection to a MySQL-compatible database.
func Connect(cfg config.DatabaseConfig, debug bool) (*gorm.DB, error) {
	dsn := DSN(cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(debug))
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return db, nil
}

// ConnectSQLite opens a GORM connection to a SQLite file, used for local
// runs. The pool is limited to one connection so writers serialize.
func ConnectSQLite(path string, debug bool) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), gormConfig(debug))
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// ConnectAdmin opens a GORM connection to the MySQL server without
// selecting a database, used for CREATE DATABASE operations.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := DSN(cfg.User, cfg.Password, cfg.Host, cfg.Port, "")
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(false))
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

func gormConfig(debug bool) *gorm.Config {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	return &gorm.Config{Logger: logger.Default.LogMode(level)}
}
