// Package config resolves client configuration by layering, in increasing
// priority: an optional YAML file, environment variables, and explicit
// overrides passed by the caller. It follows the familiar koanf-based
// Load shape (file.Provider + yaml.Parser, then env.Provider, then
// Unmarshal), generalized with one more layer: a confmap.Provider carrying
// whatever the caller constructed in code, loaded last so it always wins
// over both the file and the environment — useful for a caller that wants
// to pin credentials without touching either.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/howard-nolan/gemini-client/internal/auth"
	"github.com/howard-nolan/gemini-client/internal/errs"
)

// Config is the fully resolved client configuration.
type Config struct {
	// AuthType pins the backend explicitly ("gemini" or "vertex"). Left
	// empty, Validate/ResolveAuth picks Gemini when an api_key is present,
	// falling back to Vertex.
	AuthType string `koanf:"auth_type"`
	APIKey   string `koanf:"api_key"`
	Vertex   Vertex `koanf:"vertex"`

	TelemetryEnabled bool `koanf:"telemetry_enabled"`
	MaxStreams       int  `koanf:"max_streams"`
	MaxRetries       int  `koanf:"max_retries"`
}

// Vertex holds everything needed to authenticate against Vertex AI.
type Vertex struct {
	ProjectID          string `koanf:"project_id"`
	Location           string `koanf:"location"`
	AccessToken        string `koanf:"access_token"`
	ServiceAccountFile string `koanf:"service_account_file"`
	ServiceAccountJSON string `koanf:"service_account_json"`
}

// defaults holds the values a zero-value Config should behave as, applied
// before any layer loads.
func defaults() map[string]any {
	return map[string]any{
		"telemetry_enabled": false,
		"max_streams":       100,
		"max_retries":       3,
	}
}

// Load resolves configuration with no caller-supplied overrides. path may
// be empty, in which case the file layer is skipped entirely (env and
// defaults still apply) — a YAML file is convenience, not a requirement.
func Load(path string) (*Config, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides resolves configuration the same way Load does, then
// merges overrides on top as the final, highest-priority layer.
func LoadWithOverrides(path string, overrides map[string]any) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %q: %w", path, err)
			}
		}
	}

	// GOOGLE_CLOUD_* is the ambient Google Cloud SDK convention; it loads
	// first so the more specific VERTEX_* variables below can override it.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		switch s {
		case "GOOGLE_CLOUD_PROJECT":
			return "vertex.project_id"
		case "GOOGLE_CLOUD_LOCATION":
			return "vertex.location"
		default:
			return ""
		}
	}), nil); err != nil {
		return nil, fmt.Errorf("loading GOOGLE_CLOUD_* env vars: %w", err)
	}

	if err := k.Load(env.Provider("", ".", geminiEnvKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// geminiEnvKey maps the client's recognized environment variables to koanf
// dotted keys. An env var not in this table returns "", which koanf treats
// as "don't load this key" — so unrelated environment variables never leak
// into the config tree.
func geminiEnvKey(s string) string {
	switch s {
	case "GEMINI_API_KEY":
		return "api_key"
	case "GEMINI_AUTH_TYPE":
		return "auth_type"
	case "GEMINI_TELEMETRY_ENABLED":
		return "telemetry_enabled"
	case "GEMINI_MAX_STREAMS":
		return "max_streams"
	case "GEMINI_MAX_RETRIES":
		return "max_retries"
	case "VERTEX_ACCESS_TOKEN":
		return "vertex.access_token"
	case "VERTEX_PROJECT_ID":
		return "vertex.project_id"
	case "VERTEX_LOCATION":
		return "vertex.location"
	case "VERTEX_JSON_FILE":
		return "vertex.service_account_file"
	case "VERTEX_SERVICE_ACCOUNT":
		return "vertex.service_account_json"
	default:
		return ""
	}
}

// Validate reports a Config error if neither backend has enough
// information to authenticate.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) != "" {
		return nil
	}
	if c.hasVertexCredentials() {
		return nil
	}
	return errs.NewConfig("no credentials resolved: set api_key or vertex.{project_id,location,access_token|service_account_file|service_account_json}")
}

func (c *Config) hasVertexCredentials() bool {
	if strings.TrimSpace(c.Vertex.ProjectID) == "" || strings.TrimSpace(c.Vertex.Location) == "" {
		return false
	}
	return c.Vertex.AccessToken != "" || c.Vertex.ServiceAccountFile != "" || c.Vertex.ServiceAccountJSON != ""
}

// ResolveAuth builds the auth.Config this client configuration describes.
// Gemini is preferred over Vertex when both are present, matching the
// priority AuthType documents.
func (c *Config) ResolveAuth() (auth.Config, error) {
	authType := c.AuthType
	if authType == "" {
		if strings.TrimSpace(c.APIKey) != "" {
			authType = string(auth.TypeGemini)
		} else {
			authType = string(auth.TypeVertex)
		}
	}

	switch auth.Type(authType) {
	case auth.TypeGemini:
		return auth.Config{Type: auth.TypeGemini, Credentials: auth.APIKeyCredentials{Key: c.APIKey}}, nil

	case auth.TypeVertex:
		if c.Vertex.AccessToken != "" {
			return auth.Config{Type: auth.TypeVertex, Credentials: auth.VertexCredentials{
				AccessToken: c.Vertex.AccessToken,
				ProjectID:   c.Vertex.ProjectID,
				Location:    c.Vertex.Location,
			}}, nil
		}

		saJSON, err := c.loadServiceAccountJSON()
		if err != nil {
			return auth.Config{}, err
		}
		creds, err := auth.NewVertexCredentialsFromServiceAccount(saJSON, c.Vertex.ProjectID, c.Vertex.Location)
		if err != nil {
			return auth.Config{}, err
		}
		return auth.Config{Type: auth.TypeVertex, Credentials: creds}, nil

	default:
		return auth.Config{}, errs.NewConfig("unknown auth_type: %q", authType)
	}
}

func (c *Config) loadServiceAccountJSON() ([]byte, error) {
	if c.Vertex.ServiceAccountJSON != "" {
		return []byte(c.Vertex.ServiceAccountJSON), nil
	}
	if c.Vertex.ServiceAccountFile != "" {
		b, err := os.ReadFile(c.Vertex.ServiceAccountFile)
		if err != nil {
			return nil, errs.NewConfig("reading vertex.service_account_file: %v", err)
		}
		return b, nil
	}
	return nil, errs.NewConfig("vertex auth requires access_token, service_account_file, or service_account_json")
}
