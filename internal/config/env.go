package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// lookupFunc matches os.LookupEnv so tests can supply a fixed environment.
type lookupFunc func(key string) (string, bool)

// EnvKey returns the environment variable that overrides the dotted TOML key,
// e.g. "cache.segment.age_minutes" -> HLSCACHE_CACHE_SEGMENT_AGE_MINUTES.
func EnvKey(dotted string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(dotted, ".", "_"))
}

// applyEnvOverrides round-trips the config through a generic TOML tree so every
// scalar key can be overridden without a hand-maintained list.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config for env overrides: %w", err)
	}
	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode config tree: %w", err)
	}
	changed, err := overrideTree(tree, nil, lookup)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	raw, err = toml.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode overridden config: %w", err)
	}
	var updated Config
	if err := toml.Unmarshal(raw, &updated); err != nil {
		return fmt.Errorf("apply env overrides: %w", err)
	}
	*cfg = updated
	return nil
}

func overrideTree(tree map[string]any, path []string, lookup lookupFunc) (bool, error) {
	keys := make([]string, 0, len(tree))
	for key := range tree {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changed := false
	for _, key := range keys {
		current := append(append([]string(nil), path...), key)
		if nested, ok := tree[key].(map[string]any); ok {
			sub, err := overrideTree(nested, current, lookup)
			if err != nil {
				return false, err
			}
			changed = changed || sub
			continue
		}
		envName := EnvKey(strings.Join(current, "."))
		value, ok := lookup(envName)
		if !ok {
			continue
		}
		parsed, err := parseEnvValue(tree[key], strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Errorf("%s: %w", envName, err)
		}
		tree[key] = parsed
		changed = true
	}
	return changed, nil
}

func parseEnvValue(existing any, value string) (any, error) {
	switch existing.(type) {
	case int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", value)
		}
		return n, nil
	case bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", value)
		}
		return b, nil
	case float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", value)
		}
		return f, nil
	default:
		return value, nil
	}
}
