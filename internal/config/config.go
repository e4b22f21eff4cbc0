package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderAzure  = "azure"
)

type Config struct {
	Server    ServerConfig
	RAG       RAGConfig
	Vision    ProviderConfig
	Reasoning ProviderConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Log       LogConfig
	Client    ClientConfig
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// StaticDir, when set, is served at / for a bundled frontend.
	StaticDir string `mapstructure:"static_dir"`
}

func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

type RAGConfig struct {
	// ServiceURL is the retrieval microservice base URL. Empty disables retrieval.
	ServiceURL string `mapstructure:"service_url"`
	TimeoutMS  int    `mapstructure:"timeout_ms"`
}

func (r RAGConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// ProviderConfig selects which LLM backend serves a pipeline stage.
type ProviderConfig struct {
	Provider string `mapstructure:"provider"`
}

type OpenAIConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	APIEndpoint    string `mapstructure:"endpoint"`
	APIVersion     string `mapstructure:"api_version"`
	VisionModel    string `mapstructure:"vision_model"`
	ReasoningModel string `mapstructure:"reasoning_model"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ClientConfig struct {
	BackendURL string `mapstructure:"backend_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "3001")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)
	v.SetDefault("server.static_dir", "")

	v.SetDefault("rag.service_url", "")
	v.SetDefault("rag.timeout_ms", 30000)

	v.SetDefault("vision.provider", ProviderOpenAI)
	v.SetDefault("reasoning.provider", ProviderOpenAI)

	v.SetDefault("openai.provider", ProviderOpenAI)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.api_version", "2024-06-01")
	v.SetDefault("openai.vision_model", "gpt-4o")
	v.SetDefault("openai.reasoning_model", "gpt-4o")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("client.backend_url", "http://localhost:3001")
}

// envAliases binds keys whose environment names don't follow the
// section_key pattern.
var envAliases = map[string]string{
	"openai.endpoint":    "OPENAI_ENDPOINT",
	"client.backend_url": "BACKEND_URL",
}

// Load reads configuration from defaults, an optional config file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first if present.
func Load(cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("using config file")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.RAG.TimeoutMS <= 0 {
		cfg.RAG.TimeoutMS = 30000
	}

	return &cfg, nil
}

// Validate checks that credentials exist for every provider in use.
func (c *Config) Validate() error {
	var errs []error
	stages := []struct{ stage, provider string }{
		{"vision", c.Vision.Provider},
		{"reasoning", c.Reasoning.Provider},
	}
	for _, s := range stages {
		stage, p := s.stage, s.provider
		switch p {
		case ProviderOpenAI:
			if c.OpenAI.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s provider %q requires OPENAI_API_KEY", stage, p))
			}
		case ProviderGemini:
			if c.Gemini.APIKey == "" {
				errs = append(errs, fmt.Errorf("%s provider %q requires GEMINI_API_KEY", stage, p))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown %s provider %q", stage, p))
		}
	}
	return errors.Join(errs...)
}
