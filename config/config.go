package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Supported database/sql driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Config holds the full application configuration loaded from flags,
// environment variables or a .env file.
//
// Example ENV equivalent:
//
//	SERVER_PORT=8080
//	DB_DRIVER=mysql
//	DB_HOST=127.0.0.1
//	DB_PORT=3306
//	DB_USER=root
//	DB_PASSWORD=secret
//	DB_NAME=trading
//	DB_TABLE=TradeHistories
//	EXPORT_ON_ROW_ERROR=abort
//	EXPORT_FLUSH_EVERY=500
type Config struct {
	Server   ServerConfig   // HTTP server configuration
	Database DatabaseConfig // trade history database
	Export   ExportConfig   // pipeline defaults
}

// ServerConfig holds HTTP server settings such as the port to listen on.
type ServerConfig struct {
	Port string // The TCP port the HTTP server will listen on (e.g., "8080")
}

// DatabaseConfig defines connection details for the trade history database.
//
// Fields:
//   - Driver: mysql, postgres (lib/pq), pgx or sqlite3.
//   - Host, Port: server address; Port defaults per driver (3306 / 5432).
//   - User, Password: credentials.
//   - DBName: database name, or the file path for sqlite3.
//   - SSLMode: Postgres sslmode (e.g., "disable", "require").
//   - Table: name of the trade history table.
//   - DSN: computed connection string for Driver.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Table    string
	DSN      string
}

// ExportConfig carries pipeline defaults shared by the CLI and the API.
type ExportConfig struct {
	OnRowError string // abort | skip
	FlushEvery int    // records between sink flushes
}

// AppConfig is the globally accessible configuration instance.
//
// It is populated once via LoadConfig() and used throughout the application.
var AppConfig Config

// LoadConfig initializes the global AppConfig.
//
// Precedence (from lowest to highest):
//  1. Defaults set in this function.
//  2. Values from .env file (if present).
//  3. Environment variables.
//  4. Command-line flags bound with viper.BindPFlag.
//
// Every missing or invalid key is reported in a single error.
func LoadConfig() error {
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("DB_DRIVER", DriverMySQL)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 0)
	viper.SetDefault("DB_USER", "root")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_NAME", "trading")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_TABLE", "TradeHistories")

	viper.SetDefault("EXPORT_ON_ROW_ERROR", "abort")
	viper.SetDefault("EXPORT_FLUSH_EVERY", 500)

	// Optionally read from .env if present (common in local dev)
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	_ = viper.ReadInConfig() // ignore error if no .env

	viper.AutomaticEnv()

	cfg := Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(strings.TrimSpace(viper.GetString("DB_DRIVER"))),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			Table:    viper.GetString("DB_TABLE"),
		},
		Export: ExportConfig{
			OnRowError: strings.ToLower(strings.TrimSpace(viper.GetString("EXPORT_ON_ROW_ERROR"))),
			FlushEvery: viper.GetInt("EXPORT_FLUSH_EVERY"),
		},
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultPort(cfg.Database.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	dsn, err := cfg.Database.BuildDSN()
	if err != nil {
		return err
	}
	cfg.Database.DSN = dsn
	AppConfig = cfg
	return nil
}

func defaultPort(driver string) int {
	switch driver {
	case DriverMySQL:
		return 3306
	case DriverPostgres, DriverPgx:
		return 5432
	default:
		return 0
	}
}

// Validate checks required and enumerated keys and reports all problems at once.
func (c Config) Validate() error {
	var problems []string

	if c.Server.Port == "" {
		problems = append(problems, "SERVER_PORT is required")
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverPgx:
		if c.Database.Host == "" {
			problems = append(problems, "DB_HOST is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			problems = append(problems, "DB_PORT must be between 1 and 65535")
		}
		if c.Database.User == "" {
			problems = append(problems, "DB_USER is required")
		}
		if c.Database.DBName == "" {
			problems = append(problems, "DB_NAME is required")
		}
	case DriverSQLite:
		if c.Database.DBName == "" {
			problems = append(problems, "DB_NAME (database file) is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER %q is not one of mysql, postgres, pgx, sqlite3", c.Database.Driver))
	}
	if c.Database.Table == "" {
		problems = append(problems, "DB_TABLE is required")
	}
	switch c.Export.OnRowError {
	case "abort", "skip":
	default:
		problems = append(problems, fmt.Sprintf("EXPORT_ON_ROW_ERROR %q must be abort or skip", c.Export.OnRowError))
	}
	if c.Export.FlushEvery <= 0 {
		problems = append(problems, "EXPORT_FLUSH_EVERY must be positive")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// BuildDSN renders the connection string for the configured driver.
func (d DatabaseConfig) BuildDSN() (string, error) {
	switch d.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		mc.DBName = d.DBName
		return mc.FormatDSN(), nil
	case DriverPostgres, DriverPgx:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.DBName,
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
		}
		return u.String(), nil
	case DriverSQLite:
		return d.DBName, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", d.Driver)
	}
}
