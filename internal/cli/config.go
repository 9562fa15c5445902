package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	Token     string
	TokenFile string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("DNDINV_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("DNDINV_TOKEN"),
		TokenFile: getEnvOrDefault("DNDINV_TOKEN_FILE", defaultTokenFile()),
		Output:    "text",
		Verbose:   false,
	}
}

// CredentialFile is where the resume credential sits, next to the token
func (c *Config) CredentialFile() string {
	return c.TokenFile + ".credential"
}

// LoadToken loads the command token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	token, err := readSecret(c.TokenFile)
	if err != nil {
		return err
	}
	c.Token = token
	return nil
}

// SaveToken saves the command token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token
	return writeSecret(c.TokenFile, token)
}

// LoadCredential reads the saved resume credential, if any
func (c *Config) LoadCredential() (string, error) {
	return readSecret(c.CredentialFile())
}

// SaveCredential stores the resume credential handed out on register
func (c *Config) SaveCredential(credential string) error {
	return writeSecret(c.CredentialFile(), credential)
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // No file is fine
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func writeSecret(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(value), 0600)
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dndinv/token"
	}
	return filepath.Join(home, ".dndinv", "token")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
