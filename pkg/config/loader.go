package config

import (
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Load parses environment variables into cfg, which declares its mapping
// with `env` and `envDefault` tags.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadWithOverrides parses the process environment with the given variables
// layered on top.
func LoadWithOverrides(cfg any, overrides map[string]string) error {
	environment := make(map[string]string, len(overrides))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environment[k] = v
		}
	}
	maps.Copy(environment, overrides)

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ReadEnvFile reads a YAML mapping of environment variable names to values.
// Sequences become comma separated lists so they parse like envSeparator
// fields:
//
//	CART_STORAGE_BACKEND: redis
//	CART_QUANTITY_CEILING: 50
//	KAFKA_BROKERS: [kafka-1:9092, kafka-2:9092]
func ReadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for name, node := range raw {
		value, err := scalarValue(&node)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %s: %w", path, name, err)
		}
		out[name] = value
	}
	return out, nil
}

func scalarValue(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value, nil
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("line %d: list items must be scalars", item.Line)
			}
			parts = append(parts, item.Value)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", fmt.Errorf("line %d: value must be a scalar or a list", n.Line)
	}
}

// Merge layers maps left to right; later maps win.
func Merge(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
