package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default identity endpoints. These are the production archive service;
// override them in the config file for other deployments.
const (
	DefaultAuthURL             = "https://pollux.cscs.ch:13000/v3"
	DefaultIdentityProvider    = "cscskc"
	DefaultIdentityProviderURL = "https://kc.cscs.ch/auth/realms/cscs/protocol/saml/"
	DefaultPasswordEnv         = "ARK_PASSWORD"
)

// Config represents the main configuration for ark.
type Config struct {
	// Username is the default account for commands that do not pass
	// --username.
	Username string `toml:"username,omitempty"`

	// AuthURL is the Keystone v3 endpoint.
	AuthURL string `toml:"auth_url"`

	// IdentityProvider and IdentityProviderURL configure the SAML2
	// federation used for password logins.
	IdentityProvider    string `toml:"identity_provider"`
	IdentityProviderURL string `toml:"identity_provider_url"`

	// PasswordEnv names the environment variable consulted for the
	// password before prompting.
	PasswordEnv string `toml:"password_env"`

	LogDir string `toml:"log_dir"`
}

// NewConfig creates a Config with the default endpoints and a log dir
// under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		AuthURL:             DefaultAuthURL,
		IdentityProvider:    DefaultIdentityProvider,
		IdentityProviderURL: DefaultIdentityProviderURL,
		PasswordEnv:         DefaultPasswordEnv,
		LogDir:              filepath.Join(baseDir, "log"),
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the
// provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
