// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Dataset      DatasetConfig           `mapstructure:"dataset"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Catalog      CatalogConfig           `mapstructure:"catalog"`
	Presentation PresentationConfig      `mapstructure:"presentation"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address           string `mapstructure:"address"`
	ReadHeaderTimeout int    `mapstructure:"read_header_timeout"` // milliseconds
	WriteTimeout      int    `mapstructure:"write_timeout"`       // milliseconds
	RequestTimeout    int    `mapstructure:"request_timeout"`     // milliseconds
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout"`    // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// Dataset backends.
const (
	BackendPostgres      = "postgres"
	BackendSQLite        = "sqlite"
	BackendElasticsearch = "elasticsearch"
)

// DatasetConfig describes where the per-round cutoff tables live.
type DatasetConfig struct {
	Backend           string   `mapstructure:"backend"`
	Rounds            []string `mapstructure:"rounds"` // table or index per round, first round first
	InstitutionColumn string   `mapstructure:"institution_column"`
	ProgramColumn     string   `mapstructure:"program_column"`
	Categories        []string `mapstructure:"categories"`
	MaxRows           int      `mapstructure:"max_rows"`
	Cache             struct {
		Enabled   bool   `mapstructure:"enabled"`
		TTL       int    `mapstructure:"ttl"` // seconds
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"cache"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	SQLite        SQLiteConfig        `mapstructure:"sqlite"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CatalogConfig points at an optional program-group file. Empty uses the built-in groups.
type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type PresentationConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPages    int `mapstructure:"max_pages"`
	ExportCap   int `mapstructure:"export_cap"`
	ExportBlock int `mapstructure:"export_block"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CacheTTL returns the round cache TTL.
func (d DatasetConfig) CacheTTL() time.Duration {
	return time.Duration(d.Cache.TTL) * time.Second
}
