// config is the package containing configuration for composerd, shared
// so the flags, a config file and the environment all fill in the same
// struct.
package config

import (
	"fmt"
	"time"
)

const (
	ConfigPath            = "/etc/composerd/conf"
	ConfigName            = "composer-config.yaml"
	ConfigType            = "yaml"
	ComposerConfigVersion = "v1"

	// EnvPrefix is the prefix of environment variables that set
	// config, e.g., COMPOSER_SCHEMA_PATH.
	EnvPrefix = "composer"
)

type Config struct {
	// This is expected to be present in a config file (and will not
	// correspond to a flag). The value determines how the config file
	// is interpreted: for now, if it is not equal to
	// ComposerConfigVersion above, it is considered an invalid
	// configuration.
	ConfigVersion string `mapstructure:"composerConfigVersion"`

	LogFormat     string `mapstructure:"logFormat"`
	Listen        string `mapstructure:"listen"`
	ListenMetrics string `mapstructure:"listenMetrics"`

	// CORSAllowedOrigin are the origins of frontends that may call
	// the API from a browser.
	CORSAllowedOrigin []string `mapstructure:"corsAllowedOrigin"`

	SchemaPath string   `mapstructure:"schemaPath"`
	DenyKind   []string `mapstructure:"denyKind"`

	Kubectl     string `mapstructure:"kubectl"`
	Kubeconfig  string `mapstructure:"kubeconfig"`
	KubeContext string `mapstructure:"kubeContext"`

	ChatBaseURL string        `mapstructure:"chatBaseUrl"`
	ChatRPS     float64       `mapstructure:"chatRps"`
	ChatBurst   int           `mapstructure:"chatBurst"`
	ChatTimeout time.Duration `mapstructure:"chatTimeout"`
}

// IsValid checks a config read from a file.
func (c Config) IsValid() error {
	if c.ConfigVersion != ComposerConfigVersion {
		return fmt.Errorf("config file is expected to include `composerConfigVersion: %s` to mark it as a composer config", ComposerConfigVersion)
	}
	return nil
}

// Check looks for settings that can't work, whatever their source.
func (c Config) Check() error {
	switch c.LogFormat {
	case "fmt", "json":
	default:
		return fmt.Errorf("--log-format must be one of fmt or json, got %q", c.LogFormat)
	}
	if c.ChatRPS < 0 {
		return fmt.Errorf("--chat-rps must not be negative, got %v", c.ChatRPS)
	}
	if c.ChatRPS > 0 && c.ChatBurst < 1 {
		return fmt.Errorf("--chat-burst must be at least 1 when --chat-rps is set, got %d", c.ChatBurst)
	}
	if c.ChatTimeout < 0 {
		return fmt.Errorf("--chat-timeout must not be negative, got %v", c.ChatTimeout)
	}
	return nil
}
