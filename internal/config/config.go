// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	GeoServer GeoServerConfig
	Upload    UploadConfig
	Tools     ToolsConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Paths     PathsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 5001)
	Port int `env:"SERVER_PORT" default:"5001"`

	// ReadTimeout is the maximum duration for reading request headers/body (default: 60s).
	// Boundary archives and rasters can be large; keep this generous.
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing the response (default: 0, disabled).
	// Upload responses are only written after the full pipeline completes.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds spatial database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL/PostGIS connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// GeoServerConfig holds tile-server connection settings.
type GeoServerConfig struct {
	// URL is the GeoServer base URL including the /geoserver path (default: http://localhost:8081/geoserver)
	URL string `env:"GEOSERVER_URL" default:"http://localhost:8081/geoserver"`

	// User is the GeoServer admin user (default: admin)
	User string `env:"GEOSERVER_USER" default:"admin"`

	// Password is the GeoServer admin password (default: geoserver)
	Password string `env:"GEOSERVER_PASSWORD" default:"geoserver"`

	// Workspace is the default workspace for published layers (default: climate)
	Workspace string `env:"GEOSERVER_WORKSPACE" default:"climate"`

	// Datastore is the PostGIS datastore name inside the workspace (default: postgis)
	Datastore string `env:"GEOSERVER_DATASTORE" default:"postgis"`

	// Timeout is the per-request timeout for REST calls (default: 30s)
	Timeout time.Duration `env:"GEOSERVER_TIMEOUT" default:"30s"`
}

// UploadConfig holds upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 500MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"524288000"`

	// MaxConcurrent is the maximum number of parallel upload pipelines (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// PipelineTimeout is the budget for a full upload pipeline, covering
	// extraction, import, publishing and derived artifacts (default: 600s)
	PipelineTimeout time.Duration `env:"UPLOAD_PIPELINE_TIMEOUT" default:"600s"`
}

// ToolsConfig holds external geospatial tool settings.
type ToolsConfig struct {
	// Ogr2Ogr is the path to the ogr2ogr binary (default: ogr2ogr, resolved via PATH)
	Ogr2Ogr string `env:"TOOL_OGR2OGR" default:"ogr2ogr"`

	// GdalInfo is the path to the gdalinfo binary (default: gdalinfo)
	GdalInfo string `env:"TOOL_GDALINFO" default:"gdalinfo"`

	// GdalDEM is the path to the gdaldem binary (default: gdaldem)
	GdalDEM string `env:"TOOL_GDALDEM" default:"gdaldem"`

	// GdalTranslate is the path to the gdal_translate binary (default: gdal_translate)
	GdalTranslate string `env:"TOOL_GDAL_TRANSLATE" default:"gdal_translate"`

	// Timeout is the budget for a single tool invocation (default: 30s).
	// Expiry force-terminates the child process.
	Timeout time.Duration `env:"TOOL_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey gates destructive endpoints (delete, cleanup) behind X-API-Key
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// PathsConfig holds on-disk workspace locations.
type PathsConfig struct {
	// DataDir is the root of the extraction/processing workspace (default: ./data)
	DataDir string `env:"DATA_DIR" default:"./data"`

	// BoundaryDir holds pre-seeded boundary archives re-imported on startup (default: ./data/boundaries)
	BoundaryDir string `env:"BOUNDARY_DIR" default:"./data/boundaries"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + strconv.Itoa(c.Port)
	}
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// OGRConnString converts the pgx-style DATABASE_URL into the key-value
// "PG:" datasource string that ogr2ogr expects.
func (c *DatabaseConfig) OGRConnString() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parse database URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("database URL %q has no host", c.URL)
	}

	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	dbname := strings.TrimPrefix(u.Path, "/")

	parts := []string{"host=" + host, "port=" + port}
	if dbname != "" {
		parts = append(parts, "dbname="+dbname)
	}
	if u.User != nil {
		if user := u.User.Username(); user != "" {
			parts = append(parts, "user="+user)
		}
		if pass, ok := u.User.Password(); ok && pass != "" {
			parts = append(parts, "password="+pass)
		}
	}
	return "PG:" + strings.Join(parts, " "), nil
}
