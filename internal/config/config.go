// Package config handles loading and validation of the example client's
// runtime configuration.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigPath is the default location for the client configuration file.
	DefaultConfigPath = "./brainclouds2s.yaml"

	// DefaultDispatcherURL is the production S2S dispatcher endpoint.
	DefaultDispatcherURL = "https://api.braincloudservers.com/s2sdispatcher"
)

// Config holds everything needed to construct a s2s.Context.
type Config struct {
	// AppID is the brainCloud app id.
	AppID string `mapstructure:"app_id" yaml:"app_id"`

	// ServerName is the configured S2S server identity name.
	ServerName string `mapstructure:"server_name" yaml:"server_name"`

	// ServerSecret is the S2S server secret. Never logged; see internal/logging.
	ServerSecret string `mapstructure:"server_secret" yaml:"server_secret"`

	// DispatcherURL is the S2S dispatcher endpoint.
	DispatcherURL string `mapstructure:"dispatcher_url" yaml:"dispatcher_url"`

	// AutoAuth enables automatic (re-)authentication on first request and on
	// session-expiry recovery.
	AutoAuth bool `mapstructure:"auto_auth" yaml:"auto_auth"`

	// RttPreferWebSocket selects WebSocket over TCP when both are offered by
	// the RTT endpoint list.
	RttPreferWebSocket bool `mapstructure:"rtt_prefer_websocket" yaml:"rtt_prefer_websocket"`

	// LogLevel controls the logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads configuration from the given file path, falling back to the
// default path if configPath is empty. Environment variables override file
// values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("dispatcher_url", DefaultDispatcherURL)
	v.SetDefault("auto_auth", true)
	v.SetDefault("rtt_prefer_websocket", true)
	v.SetDefault("log_level", "info")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	v.SetEnvPrefix("BRAINCLOUDS2S")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"app_id":               "BRAINCLOUDS2S_APP_ID",
		"server_name":          "BRAINCLOUDS2S_SERVER_NAME",
		"server_secret":        "BRAINCLOUDS2S_SERVER_SECRET",
		"dispatcher_url":       "BRAINCLOUDS2S_DISPATCHER_URL",
		"auto_auth":            "BRAINCLOUDS2S_AUTO_AUTH",
		"rtt_prefer_websocket": "BRAINCLOUDS2S_RTT_PREFER_WEBSOCKET",
		"log_level":            "BRAINCLOUDS2S_LOG_LEVEL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			// Config file not found; rely on env vars and defaults.
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// IDs holds the four S2S credentials the test harness reads from an
// ids.txt file instead of the environment, matching the original SDK's
// test runner convention.
type IDs struct {
	AppID        string
	ServerName   string
	ServerSecret string
	S2SURL       string
}

var idsKeys = []string{"appId", "serverName", "serverSecret", "s2sUrl"}

// LoadIDs reads a whitespace/"="-separated "key value" ids.txt file, the
// same format the upstream C++ test runner loads its four S2S credentials
// from. Each recognized key may appear as "key value" or "key=value"; the
// first match per key wins. Returns an error if the file is missing or any
// of the four keys was never found.
func LoadIDs(path string) (*IDs, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ids file: %w", err)
	}
	defer f.Close()

	values := make(map[string]string, len(idsKeys))
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, key := range idsKeys {
			if _, ok := values[key]; ok {
				continue
			}
			idx := strings.Index(line, key)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(line[idx+len(key):])
			rest = strings.TrimPrefix(rest, "=")
			values[key] = strings.TrimSpace(rest)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ids file: %w", err)
	}

	ids := &IDs{
		AppID:        values["appId"],
		ServerName:   values["serverName"],
		ServerSecret: values["serverSecret"],
		S2SURL:       values["s2sUrl"],
	}
	if ids.AppID == "" || ids.ServerName == "" || ids.ServerSecret == "" || ids.S2SURL == "" {
		return nil, fmt.Errorf("ids file missing one or more of appId/serverName/serverSecret/s2sUrl")
	}
	return ids, nil
}

// Validate checks that all required configuration fields are present.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("app_id is required")
	}
	if c.ServerName == "" {
		return fmt.Errorf("server_name is required")
	}
	if c.ServerSecret == "" {
		return fmt.Errorf("server_secret is required")
	}
	if c.DispatcherURL == "" {
		return fmt.Errorf("dispatcher_url is required")
	}
	return nil
}
