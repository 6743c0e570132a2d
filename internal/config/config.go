// Package config loads cognix settings from .env, an optional cognix.yaml and
// COGNIX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Dev      bool   `mapstructure:"dev"`
	LogPath  string `mapstructure:"log_path"`
	LogLevel string `mapstructure:"log_level"`
	Offline  bool   `mapstructure:"offline"`

	Gemini      ProviderConfig    `mapstructure:"gemini"`
	OpenRouter  ProviderConfig    `mapstructure:"openrouter"`
	OpenAI      ProviderConfig    `mapstructure:"openai"`
	Ollama      OllamaConfig      `mapstructure:"ollama"`
	Supabase    SupabaseConfig    `mapstructure:"supabase"`
	Speech      SpeechConfig      `mapstructure:"speech"`
	Session     SessionConfig     `mapstructure:"session"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
	Server      ServerConfig      `mapstructure:"server"`
}

// ProviderConfig describes one hosted completion backend.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type OllamaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
}

type SupabaseConfig struct {
	URL     string `mapstructure:"url"`
	AnonKey string `mapstructure:"anon_key"`
}

type SpeechConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Language        string  `mapstructure:"language"`
	SileroModelPath string  `mapstructure:"silero_model_path"`
	MinVolume       float64 `mapstructure:"min_volume"`
	Voice           string  `mapstructure:"voice"`
	// DeviceIndex picks an input device from "cognix devices"; -1 is the default device.
	DeviceIndex int `mapstructure:"device_index"`
}

type SessionConfig struct {
	IncludeGreeting   bool          `mapstructure:"include_greeting"`
	DiscardStale      bool          `mapstructure:"discard_stale"`
	Stream            bool          `mapstructure:"stream"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type PreferencesConfig struct {
	Path   string `mapstructure:"path"`
	Remote bool   `mapstructure:"remote"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
}

// Load reads the configuration. An empty path searches ./cognix.yaml and
// $XDG_CONFIG_HOME/cognix/cognix.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("dev", false)
	v.SetDefault("log_path", "")
	v.SetDefault("log_level", "")
	v.SetDefault("offline", false)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("ollama.enabled", false)
	v.SetDefault("ollama.host", "localhost:11434")
	v.SetDefault("speech.language", "en-US")
	v.SetDefault("speech.silero_model_path", filepath.Join("internal", "files", "silero_vad.onnx"))
	v.SetDefault("speech.min_volume", 450)
	v.SetDefault("speech.voice", "")
	v.SetDefault("speech.device_index", -1)
	v.SetDefault("session.include_greeting", false)
	v.SetDefault("session.discard_stale", true)
	v.SetDefault("session.stream", true)
	v.SetDefault("session.requests_per_minute", 15)
	v.SetDefault("session.timeout", "60s")
	v.SetDefault("preferences.path", defaultPreferencesPath())
	v.SetDefault("preferences.remote", false)
	v.SetDefault("server.address", "localhost:8080")
	v.SetDefault("server.token", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cognix")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "cognix"))
		}
	}

	// COGNIX_GEMINI_API_KEY, COGNIX_SESSION_TIMEOUT, ...
	v.SetEnvPrefix("COGNIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known names used by the hosted dashboards.
	_ = v.BindEnv("gemini.api_key", "COGNIX_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("openrouter.api_key", "COGNIX_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openai.api_key", "COGNIX_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("supabase.url", "COGNIX_SUPABASE_URL", "SUPABASE_URL")
	_ = v.BindEnv("supabase.anon_key", "COGNIX_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY")
	_ = v.BindEnv("speech.api_key", "COGNIX_SPEECH_API_KEY", "API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Gemini.APIKey = resolveEnvRef(cfg.Gemini.APIKey)
	cfg.OpenRouter.APIKey = resolveEnvRef(cfg.OpenRouter.APIKey)
	cfg.OpenAI.APIKey = resolveEnvRef(cfg.OpenAI.APIKey)
	cfg.Supabase.AnonKey = resolveEnvRef(cfg.Supabase.AnonKey)
	cfg.Speech.APIKey = resolveEnvRef(cfg.Speech.APIKey)
	cfg.Server.Token = resolveEnvRef(cfg.Server.Token)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Session.RequestsPerMinute < 0 {
		return fmt.Errorf("session.requests_per_minute must not be negative, got %d", c.Session.RequestsPerMinute)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive, got %s", c.Session.Timeout)
	}
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" with the value of VAR_NAME when it is set.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		if envVal := os.Getenv(val[2 : len(val)-1]); envVal != "" {
			return envVal
		}
	}
	return val
}

func defaultPreferencesPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "cognix-preferences.toml"
	}
	return filepath.Join(dir, "cognix", "preferences.toml")
}
