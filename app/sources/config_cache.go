package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config describes one aggregation source, loaded from a YAML file in
// the sources directory. The file name (without extension) becomes the
// source name.
type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Type     string         `yaml:"type"` // community, reddit or status
	Settings ConfigSettings `yaml:"settings"`

	Community *CommunityConfig `yaml:"community"`
	Reddit    *RedditConfig    `yaml:"reddit"`
	Status    *StatusConfig    `yaml:"status"`
}

type ConfigSettings struct {
	Enabled  bool `yaml:"enabled"`
	MaxItems int  `yaml:"max_items"`
	Timeout  int  `yaml:"timeout"` // seconds
}

type CommunityConfig struct {
	BlogFeedURL     string `yaml:"blog_feed_url"`
	QuestionFeedURL string `yaml:"question_feed_url"`
	ReleaseNotesURL string `yaml:"release_notes_url"`
	DeployNotesURL  string `yaml:"deploy_notes_url"`
}

type RedditConfig struct {
	Subreddits []string `yaml:"subreddits"`
	Listing    string   `yaml:"listing"` // new, hot
}

type StatusConfig struct {
	IncidentsURL string `yaml:"incidents_url"`
}

type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		sourceName := strings.TrimSuffix(fileName, ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded", "source", sourceName, "type", config.Type, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := filepath.Join(cc.sourcesDir, sourceName+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.Name = sourceName

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = &config

	return &config, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return config, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make(map[string]*Config, len(cc.cache))
	for name, config := range cc.cache {
		configs[name] = config
	}
	return configs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func validateConfig(config *Config) error {
	switch config.Type {
	case "community":
		if config.Community == nil {
			return fmt.Errorf("community source requires a community section")
		}
	case "reddit":
		if config.Reddit == nil || len(config.Reddit.Subreddits) == 0 {
			return fmt.Errorf("reddit source requires at least one subreddit")
		}
	case "status":
		if config.Status == nil || config.Status.IncidentsURL == "" {
			return fmt.Errorf("status source requires an incidents_url")
		}
	default:
		return fmt.Errorf("unknown source type '%s'", config.Type)
	}

	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 25
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return nil
}
