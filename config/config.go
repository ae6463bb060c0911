// Package config holds the nested configuration mapping consulted by the resolver, jobs and downloader backends.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix          = "GALLERY"
	DefaultDestination = "./gallery-archiver"
	regexKeyPrefix     = "regex"
)

// A RegexEntry is one `regex*` key declared inside a per-category section.
type RegexEntry struct {
	Category string
	Key      string
	Pattern  string
}

type Config struct {
	v       *viper.Viper
	regexes []RegexEntry
}

// New returns a Config containing only defaults and environment overrides.
func New() *Config {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("general.destination", DefaultDestination)
	v.SetDefault("general.max-depth", 0)
	v.SetDefault("downloader.scope", "manager")
	v.SetDefault("downloader.http.retries", 4)
	v.SetDefault("downloader.http.timeout", 30*time.Second)
	v.SetDefault("downloader.http.user-agent", "gallery-archiver/1.0")
	v.SetDefault("downloader.http.backoff", time.Second)
	v.SetDefault("downloader.ftp.retries", 2)
	v.SetDefault("downloader.ftp.timeout", 30*time.Second)
	v.SetDefault("downloader.ftp.backoff", time.Second)
	v.SetDefault("path.restrict", "/")
	v.SetDefault("path.replace", "_")
	v.SetDefault("path.strip", "")
	v.SetDefault("output.mode", "auto")
	v.SetDefault("output.progress", true)
	v.SetDefault("log.level", "info")

	return &Config{v: v}
}

// Parse builds a Config from YAML document data.
func Parse(data []byte) (*Config, error) {
	c := New()
	c.v.SetConfigType("yaml")
	if err := c.v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	c.regexes = regexEntries(&root)
	return c, nil
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// LoadDefault reads the first config file found in the default locations, or returns defaults if there are none.
func LoadDefault() (*Config, error) {
	for _, path := range DefaultPaths() {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		return Load(path)
	}
	return New(), nil
}

func DefaultPaths() []string {
	var paths []string
	configDir := os.Getenv("XDG_CONFIG_HOME")
	home, err := os.UserHomeDir()
	if configDir == "" && err == nil {
		configDir = filepath.Join(home, ".config")
	}
	if configDir != "" {
		paths = append(paths, filepath.Join(configDir, "gallery-archiver", "config.yaml"))
	}
	if err == nil {
		paths = append(paths, filepath.Join(home, ".gallery-archiver.yaml"))
	}
	return paths
}

func (c *Config) Viper() *viper.Viper {
	return c.v
}

func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

func (c *Config) IsSet(key string) bool {
	return c.v.IsSet(key)
}

func (c *Config) Get(key string) any {
	return c.v.Get(key)
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

func (c *Config) GetStringMap(key string) map[string]any {
	return c.v.GetStringMap(key)
}

// Destination is the fallback output root, used when no destination was given on the command line.
func (c *Config) Destination() string {
	if dest := c.v.GetString("general.destination"); dest != "" {
		return dest
	}
	return DefaultDestination
}

// Interpolate looks up key at each level of path, the deepest level that sets it wins. For path
// ["extractor", "4archive", "thread"] and key "directory" that means "extractor.4archive.thread.directory" beats
// "extractor.4archive.directory", which beats "extractor.directory".
func (c *Config) Interpolate(path []string, key string) (any, bool) {
	for i := len(path); i >= 0; i-- {
		full := strings.Join(append(append([]string{}, path[:i]...), key), ".")
		if c.v.IsSet(full) {
			return c.v.Get(full), true
		}
	}
	return nil, false
}

func (c *Config) InterpolateString(path []string, key string, def string) string {
	if value, ok := c.Interpolate(path, key); ok {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return def
}

// InterpolateStrings accepts either a list of strings or a single string (treated as a one-element list).
func (c *Config) InterpolateStrings(path []string, key string, def []string) []string {
	value, ok := c.Interpolate(path, key)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			result = append(result, fmt.Sprint(item))
		}
		return result
	default:
		return def
	}
}

// RegexEntries returns the per-category `regex*` keys in the order they were declared in the config file.
func (c *Config) RegexEntries() []RegexEntry {
	return c.regexes
}

func regexEntries(root *yaml.Node) []RegexEntry {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	var entries []RegexEntry
	for i := 0; i+1 < len(doc.Content); i += 2 {
		category, section := doc.Content[i].Value, doc.Content[i+1]
		if section.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(section.Content); j += 2 {
			key, value := section.Content[j].Value, section.Content[j+1]
			if !strings.HasPrefix(key, regexKeyPrefix) {
				continue
			}
			switch value.Kind {
			case yaml.ScalarNode:
				entries = append(entries, RegexEntry{Category: category, Key: key, Pattern: value.Value})
			case yaml.SequenceNode:
				for _, item := range value.Content {
					if item.Kind == yaml.ScalarNode {
						entries = append(entries, RegexEntry{Category: category, Key: key, Pattern: item.Value})
					}
				}
			}
		}
	}
	return entries
}
