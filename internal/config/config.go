// Package config loads the YAML configuration, merging include files and applying
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"datafeeder/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvConfigPath = "DATAFEEDER_CONFIG"
	EnvLogLevel   = "DATAFEEDER_LOG_LEVEL"
	EnvPort       = "PORT"
)

// Load reads path (and its includes), applies defaults and env overrides, resolves
// credentials from the process environment, then validates.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	v, err := readMerged(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := decode(v, &cfg); err != nil {
		return nil, err
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	applyEnv(&cfg, lookup)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	keys, err := cfg.Credentials.resolveKeys(lookup)
	if err != nil {
		return nil, err
	}
	cfg.Credentials.Resolved = keys
	return &cfg, nil
}

func decode(v *viper.Viper, cfg *Config) error {
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return fmt.Errorf("parsing config failed: %w", err)
	}
	return nil
}

func readMerged(path string) (*viper.Viper, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	return v, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if port, ok := lookup(EnvPort); ok && strings.TrimSpace(port) != "" {
		cfg.App.HTTPAddr = ":" + strings.TrimSpace(port)
	}
	if lvl, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(lvl) != "" {
		cfg.App.LogLevel = strings.TrimSpace(lvl)
	}
}

// WatchLogLevel re-reads the config files whenever the top-level one changes and
// hands the new app.log_level to apply. Every other field is fixed at startup.
func WatchLogLevel(path string, apply func(level string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w := viper.New()
	w.SetConfigFile(abs)
	if err := w.ReadInConfig(); err != nil {
		return err
	}
	w.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		v, err := readMerged(abs)
		if err != nil {
			logger.Warnf("config: reload %s failed: %v", e.Name, err)
			return
		}
		var cfg Config
		if err := decode(v, &cfg); err != nil {
			logger.Warnf("config: reload %s failed: %v", e.Name, err)
			return
		}
		if lvl := strings.TrimSpace(cfg.App.LogLevel); lvl != "" {
			if _, ok := os.LookupEnv(EnvLogLevel); ok {
				return
			}
			apply(lvl)
		}
	})
	w.WatchConfig()
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

func resolveConfigIncludes(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	files, err := collectConfigFiles(abs, seen, stack)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

// collectConfigFiles orders includes before the including file so later files win on merge.
func collectConfigFiles(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := parseIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(dir, inc)
		}
		sub, err := collectConfigFiles(incPath, seen, stack)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}
	delete(stack, path)
	seen[path] = true
	ordered = append(ordered, path)
	return ordered, nil
}

func parseIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	var items []string
	switch val := raw.(type) {
	case string:
		items = []string{val}
	case []any:
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("include only supports strings")
			}
			items = append(items, str)
		}
	case []string:
		items = val
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
