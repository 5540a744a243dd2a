// Package config handles Ada configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./ada.yaml, ~/.config/ada/ada.yaml, /etc/ada/ada.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"ada.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ada", "ada.yaml"))
	}

	paths = append(paths, "/etc/ada/ada.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Ada configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Web       WebConfig       `yaml:"web"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Email     EmailConfig     `yaml:"email"`
	Contacts  ContactsConfig  `yaml:"contacts"`
	Files     FilesConfig     `yaml:"files"`
	Places    PlacesConfig    `yaml:"places"`
	ImageGen  ImageGenConfig  `yaml:"image_gen"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Agent     AgentConfig     `yaml:"agent"`

	DataDir     string `yaml:"data_dir"`
	PersonaFile string `yaml:"persona_file"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"log_level"`
}

// AnthropicConfig defines the LLM endpoint settings.
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// TelegramConfig defines the Telegram bot transport.
type TelegramConfig struct {
	Token string `yaml:"token"`
	// OwnerChatID restricts the bot to a single chat. Messages from any
	// other chat are ignored. Zero disables the transport.
	OwnerChatID int64 `yaml:"owner_chat_id"`
	// BotName is the public @username, used for the pairing QR code.
	BotName string `yaml:"bot_name"`
}

// WebConfig defines the local web chat bridge.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Bind address (default: 127.0.0.1)
	Port    int    `yaml:"port"`    // Default: 8420
	// TokenHash is a bcrypt hash of the access token required on connect.
	// Empty rejects every connection; run "ada init" to generate a token.
	TokenHash string `yaml:"token_hash"`
}

// CalendarConfig defines the CalDAV calendar endpoint.
type CalendarConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EmailConfig defines IMAP and SMTP settings.
type EmailConfig struct {
	IMAPServer string `yaml:"imap_server"` // host:port
	SMTPServer string `yaml:"smtp_server"` // host:port
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	// From is the sender identity for outbound mail ("Name <addr@host>").
	From string `yaml:"from"`
}

// ContactsConfig defines the CardDAV address book endpoint.
type ContactsConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// FilesConfig defines the WebDAV file storage endpoint.
type FilesConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PlacesConfig defines the nearby-place search endpoint.
type PlacesConfig struct {
	// BaseURL of a Nominatim-compatible search API.
	// Defaults to the public OpenStreetMap instance.
	BaseURL string `yaml:"base_url"`
	// Email identifies the operator per the Nominatim usage policy.
	Email string `yaml:"email"`
}

// ImageGenConfig defines the image generation endpoint.
type ImageGenConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// MQTTConfig defines the optional presence publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // e.g. tls://host:8883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TopicPrefix defaults to "ada".
	TopicPrefix string `yaml:"topic_prefix"`
	// DiscoveryPrefix is the Home Assistant discovery root
	// (default "homeassistant"). Empty string is replaced by the default;
	// set discovery off by leaving Enabled false.
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	// DeviceName appears in the Home Assistant UI (default "ada").
	DeviceName string `yaml:"device_name"`
}

// AgentConfig tunes the orchestration loop.
type AgentConfig struct {
	// MaxHistory bounds the per-conversation message window (default 20).
	MaxHistory int `yaml:"max_history"`
	// MaxToolRounds caps tool-calling rounds per turn (default 5).
	MaxToolRounds int `yaml:"max_tool_rounds"`
	// CallTimeoutSec bounds each model and tool call (default 120).
	CallTimeoutSec int `yaml:"call_timeout_sec"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Web: WebConfig{
			Address: "127.0.0.1",
			Port:    8420,
		},
		Places: PlacesConfig{
			BaseURL: "https://nominatim.openstreetmap.org",
		},
		Agent: AgentConfig{
			MaxHistory:     20,
			MaxToolRounds:  5,
			CallTimeoutSec: 120,
		},
		DataDir:  ".",
		Timezone: "Europe/Madrid",
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
