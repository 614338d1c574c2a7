// Package config provides layered configuration loading for the name
// registry system. Components receive their configuration explicitly at
// construction time rather than reading it ambiently.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Store     StoreConfig     `json:"store"`
	Registry  RegistryConfig  `json:"registry"`
	Discovery DiscoveryConfig `json:"discovery"`
	Router    RouterConfig    `json:"router"`
}

// StoreConfig defines the record store connection settings
type StoreConfig struct {
	NATSURLs       []string      `json:"nats_urls,omitempty"`
	StreamName     string        `json:"stream_name,omitempty"`
	Subject        string        `json:"subject,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
	MaxReconnects  int           `json:"max_reconnects,omitempty"`
	ReconnectWait  time.Duration `json:"reconnect_wait,omitempty"`
}

// RegistryConfig defines the name registry HTTP service settings
type RegistryConfig struct {
	BindAddress    string        `json:"bind_address,omitempty"`
	MaxRequestSize int64         `json:"max_request_size,omitempty"`
	EnableCORS     bool          `json:"enable_cors"`
	CORSOrigins    []string      `json:"cors_origins,omitempty"`
	RequestTimeout time.Duration `json:"request_timeout,omitempty"`
}

// DiscoveryConfig defines the replica pool and health check settings.
// FailThreshold consecutive probe failures mark a replica unhealthy;
// RestoreThreshold consecutive successes restore it.
type DiscoveryConfig struct {
	Replicas         []string      `json:"replicas,omitempty"`
	ProbePath        string        `json:"probe_path,omitempty"`
	ProbeInterval    time.Duration `json:"probe_interval,omitempty"`
	ProbeTimeout     time.Duration `json:"probe_timeout,omitempty"`
	FailThreshold    int           `json:"fail_threshold,omitempty"`
	RestoreThreshold int           `json:"restore_threshold,omitempty"`
}

// RouterConfig defines the edge router settings
type RouterConfig struct {
	BindAddress    string        `json:"bind_address,omitempty"`
	APIPrefix      string        `json:"api_prefix,omitempty"`
	UITarget       string        `json:"ui_target,omitempty"`
	ForwardTimeout time.Duration `json:"forward_timeout,omitempty"`
}

// Validate checks the configuration and normalizes defaults
func (c *Config) Validate() error {
	if len(c.Store.NATSURLs) == 0 {
		return errors.New("store.nats_urls is required")
	}
	if c.Store.StreamName == "" {
		return errors.New("store.stream_name is required")
	}
	if c.Store.Subject == "" {
		return errors.New("store.subject is required")
	}
	if c.Store.RequestTimeout <= 0 {
		return errors.New("store.request_timeout must be positive")
	}

	if c.Registry.BindAddress == "" {
		return errors.New("registry.bind_address is required")
	}
	if c.Registry.MaxRequestSize < 0 {
		return errors.New("registry.max_request_size cannot be negative")
	}
	if c.Registry.MaxRequestSize == 0 {
		c.Registry.MaxRequestSize = 1024 * 1024 // 1MB default
	}
	if c.Registry.EnableCORS && len(c.Registry.CORSOrigins) == 0 {
		return errors.New("registry.enable_cors requires explicit cors_origins")
	}

	if c.Discovery.ProbeInterval <= 0 {
		return errors.New("discovery.probe_interval must be positive")
	}
	if c.Discovery.ProbeTimeout <= 0 {
		return errors.New("discovery.probe_timeout must be positive")
	}
	if c.Discovery.FailThreshold < 1 {
		return fmt.Errorf("discovery.fail_threshold must be >= 1, got %d", c.Discovery.FailThreshold)
	}
	if c.Discovery.RestoreThreshold < 1 {
		return fmt.Errorf("discovery.restore_threshold must be >= 1, got %d", c.Discovery.RestoreThreshold)
	}
	for i, replica := range c.Discovery.Replicas {
		if !strings.HasPrefix(replica, "http://") && !strings.HasPrefix(replica, "https://") {
			return fmt.Errorf("discovery.replicas[%d]: %q is not an http(s) URL", i, replica)
		}
	}

	if c.Router.BindAddress == "" {
		return errors.New("router.bind_address is required")
	}
	if c.Router.APIPrefix == "" {
		c.Router.APIPrefix = "/api/"
	}
	if !strings.HasPrefix(c.Router.APIPrefix, "/") {
		return fmt.Errorf("router.api_prefix %q must start with /", c.Router.APIPrefix)
	}
	if c.Router.ForwardTimeout <= 0 {
		return errors.New("router.forward_timeout must be positive")
	}

	return nil
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Loader handles configuration loading with layers and env overrides
type Loader struct {
	layers    []string
	envPrefix string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:    []string{},
		envPrefix: "ANVIL",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// LoadFile loads configuration from a single file on top of defaults
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	l.applyEnvOverrides(cfg)

	return cfg, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			NATSURLs:       []string{"nats://localhost:4222"},
			StreamName:     "ANVIL_NAMES",
			Subject:        "names.append",
			RequestTimeout: 2 * time.Second,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
		},
		Registry: RegistryConfig{
			BindAddress:    ":8000",
			MaxRequestSize: 1024 * 1024,
			EnableCORS:     true,
			CORSOrigins:    []string{"*"},
			RequestTimeout: 5 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Replicas:         []string{"http://localhost:8000"},
			ProbePath:        "/healthz",
			ProbeInterval:    2 * time.Second,
			ProbeTimeout:     1 * time.Second,
			FailThreshold:    3,
			RestoreThreshold: 2,
		},
		Router: RouterConfig{
			BindAddress:    ":8080",
			APIPrefix:      "/api/",
			ForwardTimeout: 10 * time.Second,
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// durationFields lists the duration-valued keys per config section, so
// human-readable strings like "500ms" in config files merge cleanly.
var durationFields = map[string][]string{
	"store":     {"request_timeout", "reconnect_wait"},
	"registry":  {"request_timeout"},
	"discovery": {"probe_interval", "probe_timeout"},
	"router":    {"forward_timeout"},
}

// parseDurations converts duration strings to nanoseconds for JSON unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	for section, fields := range durationFields {
		sectionMap, ok := data[section].(map[string]any)
		if !ok {
			continue
		}
		for _, field := range fields {
			if val, ok := sectionMap[field].(string); ok {
				if d, err := time.ParseDuration(val); err == nil {
					sectionMap[field] = d.Nanoseconds()
				}
			}
		}
	}
}

// mergeFromMap merges configuration from a raw map, only overriding fields
// present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	mergedMap := l.deepMergeMaps(baseMap, override)

	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_NATS_URLS"); val != "" {
		cfg.Store.NATSURLs = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_STREAM_NAME"); val != "" {
		cfg.Store.StreamName = val
	}
	if val := os.Getenv(l.envPrefix + "_REGISTRY_BIND"); val != "" {
		cfg.Registry.BindAddress = val
	}
	if val := os.Getenv(l.envPrefix + "_ROUTER_BIND"); val != "" {
		cfg.Router.BindAddress = val
	}
	if val := os.Getenv(l.envPrefix + "_UI_TARGET"); val != "" {
		cfg.Router.UITarget = val
	}
	if val := os.Getenv(l.envPrefix + "_REPLICAS"); val != "" {
		cfg.Discovery.Replicas = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_FAIL_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Discovery.FailThreshold = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_RESTORE_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Discovery.RestoreThreshold = n
		}
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
