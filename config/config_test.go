package config

import (
	"strings"
	"testing"
)

func TestValidatePort(t *testing.T) {
	testCases := []struct {
		name      string
		port      string
		fieldName string
		expectErr bool
		errString string
	}{
		{
			name:      "valid port",
			port:      ":8080",
			fieldName: "ServerPort",
			expectErr: false,
		},
		{
			name:      "empty port",
			port:      "",
			fieldName: "ServerPort",
			expectErr: true,
			errString: "ServerPort: port cannot be empty",
		},
		{
			name:      "no colon",
			port:      "8080",
			fieldName: "ServerPort",
			expectErr: true,
			errString: "ServerPort: port must be in format ':PORT' where PORT is numeric (current value: 8080)",
		},
		{
			name:      "non-numeric",
			port:      ":abcd",
			fieldName: "ServerPort",
			expectErr: true,
			errString: "ServerPort: port must be in format ':PORT' where PORT is numeric (current value: :abcd)",
		},
		{
			name:      "port out of range (low)",
			port:      ":0",
			fieldName: "ServerPort",
			expectErr: true,
			errString: "ServerPort: port must be between 1 and 65535 (current value: 0)",
		},
		{
			name:      "port out of range (high)",
			port:      ":65536",
			fieldName: "ServerPort",
			expectErr: true,
			errString: "ServerPort: port must be between 1 and 65535 (current value: 65536)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePort(tc.port, tc.fieldName)
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	testCases := []struct {
		name      string
		config    *Config
		expectErr bool
		errString string
	}{
		{
			name:      "valid default config",
			config:    DefaultConfig(),
			expectErr: false,
		},
		{
			name: "invalid server port",
			config: func() *Config {
				c := DefaultConfig()
				c.ServerPort = "invalid"
				return c
			}(),
			expectErr: true,
			errString: "ServerPort: port must be in format ':PORT' where PORT is numeric (current value: invalid)",
		},
		{
			name: "unknown provider",
			config: func() *Config {
				c := DefaultConfig()
				c.Generation.Provider = "mistral"
				return c
			}(),
			expectErr: true,
			errString: "Generation.Provider: must be 'openai' or 'anthropic' (current value: mistral)",
		},
		{
			name: "database enabled without host",
			config: func() *Config {
				c := DefaultConfig()
				c.Database.Enabled = true
				c.Database.Host = ""
				return c
			}(),
			expectErr: true,
			errString: "Database.Host: host cannot be empty when the database is enabled",
		},
		{
			name: "multiple errors",
			config: func() *Config {
				c := DefaultConfig()
				c.ServerPort = ""
				c.Generation.Provider = "mistral"
				return c
			}(),
			expectErr: true,
			errString: "ServerPort: port cannot be empty; Generation.Provider: must be 'openai' or 'anthropic' (current value: mistral)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.ValidateConfig()
			if tc.expectErr {
				if err == nil {
					t.Errorf("expected an error, but got nil")
				} else if err.Error() != tc.errString {
					t.Errorf("expected error string '%s', but got '%s'", tc.errString, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, but got: %v", err)
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	dc := DatabaseConfig{Host: "db.internal", Port: 5433, Database: "medscribe", Username: "svc", Password: "secret", SSLMode: "require"}
	dsn := dc.DSN()
	for _, part := range []string{"host=db.internal", "port=5433", "dbname=medscribe", "user=svc", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("expected DSN to contain %q, got %q", part, dsn)
		}
	}
}

func TestActiveProvider(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Generation.ActiveProvider(); got.BaseURL != cfg.Generation.OpenAI.BaseURL {
		t.Errorf("expected OpenAI config by default, got %+v", got)
	}
	cfg.Generation.Provider = "anthropic"
	if got := cfg.Generation.ActiveProvider(); got.BaseURL != cfg.Generation.Anthropic.BaseURL {
		t.Errorf("expected Anthropic config, got %+v", got)
	}
}
