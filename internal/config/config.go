package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
)

const (
	EnvConfigFile     = "CONFIG_FILE"
	DefaultConfigFile = "config.yml"
)

type Config struct {
	DB  DBConfig  `yaml:"db"`
	MCP MCPConfig `yaml:"mcp"`
}

type DBConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// Protocol selects the ClickHouse wire protocol ("native" or "http").
	// Ignored for postgres.
	Protocol string `yaml:"protocol"`
	Secure   bool   `yaml:"secure"`
}

type MCPConfig struct {
	ToolPrefix    string `yaml:"tool_prefix"`
	DBDescription string `yaml:"db_description"`
}

// Path returns the config file path from CONFIG_FILE, or config.yml.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Load reads a .env file from the working directory when one exists, then
// reads, env-expands and decodes the config file at path and validates it.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data. ${VAR} and $VAR references are expanded
// from the environment before decoding.
func Parse(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	// Config files without a db.type predate postgres support.
	if strings.TrimSpace(c.DB.Type) == "" {
		c.DB.Type = string(gateway.BackendClickHouse)
	}
	backend, err := gateway.ParseBackend(c.DB.Type)
	if err != nil {
		return err
	}
	c.DB.Type = string(backend)

	if strings.TrimSpace(c.DB.Host) == "" {
		return fmt.Errorf("db.host is required")
	}
	if c.DB.Port < 0 || c.DB.Port > 65535 {
		return fmt.Errorf("db.port %d is out of range", c.DB.Port)
	}

	c.DB.Protocol = strings.ToLower(strings.TrimSpace(c.DB.Protocol))
	switch backend {
	case gateway.BackendClickHouse:
		switch c.DB.Protocol {
		case "", gateway.ProtocolNative, gateway.ProtocolHTTP:
		default:
			return fmt.Errorf("db.protocol must be %q or %q, got %q", gateway.ProtocolNative, gateway.ProtocolHTTP, c.DB.Protocol)
		}
	case gateway.BackendPostgres:
		if c.DB.Protocol != "" {
			return fmt.Errorf("db.protocol is not supported for postgres")
		}
	}

	if c.DB.Port == 0 {
		c.DB.Port = defaultPort(backend, c.DB.Protocol, c.DB.Secure)
	}
	if c.MCP.DBDescription == "" {
		c.MCP.DBDescription = defaultDescription(backend)
	}
	return nil
}

// Connection maps the db section onto the gateway's connection config.
func (c Config) Connection() gateway.ConnectionConfig {
	return gateway.ConnectionConfig{
		Backend:  gateway.Backend(c.DB.Type),
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		Username: c.DB.Username,
		Password: c.DB.Password,
		Database: c.DB.Database,
		Protocol: c.DB.Protocol,
		Secure:   c.DB.Secure,
	}
}

func defaultPort(backend gateway.Backend, protocol string, secure bool) int {
	switch backend {
	case gateway.BackendPostgres:
		return 5432
	case gateway.BackendClickHouse:
		if protocol == gateway.ProtocolHTTP {
			if secure {
				return 8443
			}
			return 8123
		}
		if secure {
			return 9440
		}
		return 9000
	}
	return 0
}

func defaultDescription(backend gateway.Backend) string {
	if backend == gateway.BackendPostgres {
		return "PostgreSQL"
	}
	return "ClickHouse"
}
