package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/howard-nolan/gemini-client/internal/auth"
)

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "gemini.yaml")

	yamlContent := `
api_key: file-key
max_streams: 50
telemetry_enabled: true
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 50, cfg.MaxStreams)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, 3, cfg.MaxRetries, "unset value should keep its default")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "gemini.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api_key: file-key\n"), 0644))

	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoad_VertexEnvVars(t *testing.T) {
	t.Setenv("VERTEX_PROJECT_ID", "proj-1")
	t.Setenv("VERTEX_LOCATION", "us-central1")
	t.Setenv("VERTEX_ACCESS_TOKEN", "tok")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "proj-1", cfg.Vertex.ProjectID)
	assert.Equal(t, "us-central1", cfg.Vertex.Location)
	assert.Equal(t, "tok", cfg.Vertex.AccessToken)
	require.NoError(t, cfg.Validate())
}

func TestLoad_GoogleCloudEnvVarsAsFallback(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "ambient-proj")
	t.Setenv("GOOGLE_CLOUD_LOCATION", "europe-west4")
	t.Setenv("VERTEX_PROJECT_ID", "explicit-proj")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "explicit-proj", cfg.Vertex.ProjectID, "VERTEX_* must win over GOOGLE_CLOUD_*")
	assert.Equal(t, "europe-west4", cfg.Vertex.Location)
}

func TestLoadWithOverrides_WinsOverFileAndEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadWithOverrides("", map[string]any{"api_key": "override-key"})
	require.NoError(t, err)
	assert.Equal(t, "override-key", cfg.APIKey)
}

func TestValidate_NoCredentials(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())
}

func TestResolveAuth_PrefersGeminiWhenBothPresent(t *testing.T) {
	cfg := &Config{
		APIKey: "k",
		Vertex: Vertex{ProjectID: "p", Location: "l", AccessToken: "t"},
	}
	resolved, err := cfg.ResolveAuth()
	require.NoError(t, err)
	assert.Equal(t, auth.TypeGemini, resolved.Type)
}

func TestResolveAuth_VertexWithAccessToken(t *testing.T) {
	cfg := &Config{Vertex: Vertex{ProjectID: "p", Location: "l", AccessToken: "t"}}
	resolved, err := cfg.ResolveAuth()
	require.NoError(t, err)
	assert.Equal(t, auth.TypeVertex, resolved.Type)
	creds, ok := resolved.Credentials.(auth.VertexCredentials)
	require.True(t, ok)
	assert.Equal(t, "t", creds.AccessToken)
}

func TestResolveAuth_ExplicitAuthType(t *testing.T) {
	cfg := &Config{AuthType: "vertex", Vertex: Vertex{ProjectID: "p", Location: "l", AccessToken: "t"}}
	resolved, err := cfg.ResolveAuth()
	require.NoError(t, err)
	assert.Equal(t, auth.TypeVertex, resolved.Type)
}

func TestResolveAuth_UnknownAuthType(t *testing.T) {
	cfg := &Config{AuthType: "bogus"}
	_, err := cfg.ResolveAuth()
	require.Error(t, err)
}
