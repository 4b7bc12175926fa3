package config

import (
	"fmt"
	"sort"

	"github.com/joho/godotenv"
)

// PeerEnv returns the extra environment for a spawned peer as KEY=VALUE
// pairs, loaded from EnvFile and sorted so spawns stay reproducible.
// Empty when no env file is configured.
func (c *Config) PeerEnv() ([]string, error) {
	if c.EnvFile == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(c.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("%w: env file %s: %v", ErrInvalidConfig, c.EnvFile, err)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env, nil
}
