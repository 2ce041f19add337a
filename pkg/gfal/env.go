package gfal

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// LoadEnvFile reads a JSON file mapping environment variable names to
// values and returns it in the KEY=VALUE form the runner expects. The
// returned environment replaces the process environment entirely, so a
// clean-grid-environment file behaves the same everywhere.
func LoadEnvFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	var vars map[string]string
	if err := json.Unmarshal(data, &vars); err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env, nil
}
