package database

import "strings"

const (
	// DriverPostgres selects PostgreSQL through lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects an embedded SQLite file through go-sqlite3.
	DriverSQLite = "sqlite3"
	// DriverMemory keeps all data in process memory; no connection is opened.
	DriverMemory = "memory"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the SQLite database file; ":memory:" works for throwaway runs.
	Path string `yaml:"path" envconfig:"DB_PATH"`
	// MigrationsDir overrides the migrations root; the driver name is appended.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// DriverName returns the normalized driver, defaulting to postgres.
func (c Config) DriverName() string {
	switch d := strings.ToLower(strings.TrimSpace(c.Driver)); d {
	case "", "pg", "postgresql", DriverPostgres:
		return DriverPostgres
	case "sqlite":
		return DriverSQLite
	default:
		return d
	}
}
