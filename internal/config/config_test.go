package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3001", cfg.Server.Addr())
	assert.Equal(t, "", cfg.RAG.ServiceURL)
	assert.Equal(t, 30*time.Second, cfg.RAG.Timeout())
	assert.Equal(t, ProviderOpenAI, cfg.Vision.Provider)
	assert.Equal(t, ProviderOpenAI, cfg.Reasoning.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.APIEndpoint)
	assert.Equal(t, "http://localhost:3001", cfg.Client.BackendURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RAG_SERVICE_URL", "http://rag:8001")
	t.Setenv("RAG_TIMEOUT_MS", "1500")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SERVER_WRITE_TIMEOUT", "2m")
	t.Setenv("VISION_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_ENDPOINT", "http://localhost:1234/v1")
	t.Setenv("BACKEND_URL", "http://backend:3001")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://rag:8001", cfg.RAG.ServiceURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.RAG.Timeout())
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, ProviderGemini, cfg.Vision.Provider)
	assert.Equal(t, "g-key", cfg.Gemini.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", cfg.OpenAI.APIEndpoint)
	assert.Equal(t, "http://backend:3001", cfg.Client.BackendURL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "recyclens.yaml")
	content := "rag:\n  service_url: http://file-rag:8001\n  timeout_ms: 5000\nreasoning:\n  provider: gemini\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://file-rag:8001", cfg.RAG.ServiceURL)
	assert.Equal(t, 5*time.Second, cfg.RAG.Timeout())
	assert.Equal(t, ProviderGemini, cfg.Reasoning.Provider)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Vision:    ProviderConfig{Provider: ProviderOpenAI},
		Reasoning: ProviderConfig{Provider: ProviderGemini},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.OpenAI.APIKey = "sk"
	cfg.Gemini.APIKey = "g"
	assert.NoError(t, cfg.Validate())

	cfg.Vision.Provider = "claude"
	assert.ErrorContains(t, cfg.Validate(), `unknown vision provider "claude"`)
}
