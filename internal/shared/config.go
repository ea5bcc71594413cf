package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Remote   RemoteConfig   `toml:"remote"`
	Server   ServerConfig   `toml:"server"`
	Auth     AuthConfig     `toml:"auth"`
	Assets   AssetConfig    `toml:"assets"`
}

// DatabaseConfig contains local sqlite settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// RemoteConfig contains credentials and flags for the REST-accessible store.
type RemoteConfig struct {
	URL        string `toml:"url"`
	ServiceKey string `toml:"service_key"`
	Schema     string `toml:"schema"`
	Disabled   bool   `toml:"disabled"`
	Primary    bool   `toml:"primary"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	Env  string `toml:"env"`
}

// AuthConfig contains session settings.
type AuthConfig struct {
	SessionDays     int    `toml:"session_days"`
	AdminSetupToken string `toml:"admin_setup_token"`
}

// AssetConfig decides where album audio, covers and lyric files live.
type AssetConfig struct {
	Source    string `toml:"source"`
	AlbumsDir string `toml:"albums_dir"`
	BaseURL   string `toml:"base_url"`
	Prefix    string `toml:"prefix"`
}

// Selector is the process-wide decision of which backend is authoritative.
//
// Enabled=false means the remote store is never contacted. Primary=true
// means the remote store is authoritative and the local store receives
// mirrored writes; Primary=false inverts that.
type Selector struct {
	Enabled bool
	Primary bool
}

// Selector resolves the remote configuration into a [Selector].
func (r RemoteConfig) Selector() Selector {
	enabled := strings.TrimSpace(r.URL) != "" && strings.TrimSpace(r.ServiceKey) != "" && !r.Disabled
	return Selector{
		Enabled: enabled,
		Primary: enabled && r.Primary,
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded
// example config, with environment overrides applied.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv overrides config values from the environment so deployments can
// configure the service without editing config.toml.
func (c *Config) applyEnv() {
	setString(&c.Database.Path, "PLAYBACK_LOG_DB_PATH")
	if dir := strings.TrimSpace(os.Getenv("PLAYBACK_LOG_DIR")); dir != "" && strings.TrimSpace(os.Getenv("PLAYBACK_LOG_DB_PATH")) == "" {
		c.Database.Path = dir + string(os.PathSeparator) + "playback_logs.sqlite"
	}

	setString(&c.Remote.URL, "REMOTE_STORE_URL")
	setString(&c.Remote.ServiceKey, "REMOTE_STORE_SERVICE_KEY")
	setString(&c.Remote.Schema, "REMOTE_STORE_SCHEMA")
	setBool(&c.Remote.Disabled, "REMOTE_STORE_DISABLED")
	setBool(&c.Remote.Primary, "REMOTE_STORE_PRIMARY")

	setString(&c.Server.Env, "APP_ENV")
	setInt(&c.Auth.SessionDays, "AUTH_SESSION_DAYS")
	setString(&c.Auth.AdminSetupToken, "ADMIN_SETUP_TOKEN")

	setString(&c.Assets.Source, "ASSET_SOURCE")
	setString(&c.Assets.AlbumsDir, "ALBUMS_DIR")
	setString(&c.Assets.BaseURL, "ASSET_BASE_URL")
	setString(&c.Assets.Prefix, "ASSET_PREFIX")

	if c.Remote.Schema == "" {
		c.Remote.Schema = "public"
	}
	if c.Auth.SessionDays <= 0 {
		c.Auth.SessionDays = 14
	}
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func setInt(target *int, key string) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return
	}
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		*target = parsed
	}
}

func setBool(target *bool, key string) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		*target = true
	case "0", "false", "no", "off":
		*target = false
	}
}
