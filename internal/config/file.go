package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrConfigNotFound is returned when the -config file does not exist.
var ErrConfigNotFound = errors.New("config file does not exist")

// LoadFile decodes the JSON config at path on top of a copy of base.
//
// Keys absent from the file, or set to null, keep the value from base.
// Unknown keys are ignored.
func LoadFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := *base
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.ConfigPath = path

	return &cfg, nil
}
