package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateConfig checks the configuration for errors before startup. All
// problems are collected so a misconfigured deployment reports everything at
// once.
func (c *Config) ValidateConfig() error {
	var errs []string

	if err := validatePort(c.ServerPort, "ServerPort"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateProvider(c.Generation.Provider); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Generation.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("Generation.TimeoutSeconds: must be positive (current value: %d)", c.Generation.TimeoutSeconds))
	}
	if c.Generation.MaxTokens <= 0 {
		errs = append(errs, fmt.Sprintf("Generation.MaxTokens: must be positive (current value: %d)", c.Generation.MaxTokens))
	}
	if c.Database.Enabled && c.Database.Host == "" {
		errs = append(errs, "Database.Host: host cannot be empty when the database is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// validatePort checks that a port string is in the form ":PORT"
func validatePort(port, fieldName string) error {
	if port == "" {
		return fmt.Errorf("%s: port cannot be empty", fieldName)
	}
	if !strings.HasPrefix(port, ":") {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	n, err := strconv.Atoi(port[1:])
	if err != nil {
		return fmt.Errorf("%s: port must be in format ':PORT' where PORT is numeric (current value: %s)", fieldName, port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s: port must be between 1 and 65535 (current value: %d)", fieldName, n)
	}
	return nil
}

func validateProvider(name string) error {
	switch name {
	case "openai", "anthropic":
		return nil
	default:
		return fmt.Errorf("Generation.Provider: must be 'openai' or 'anthropic' (current value: %s)", name)
	}
}
