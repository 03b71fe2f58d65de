package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all Voice Tutor environment variables.
const EnvPrefix = "VOICE_TUTOR_"

const (
	defaultSilenceTimeout    = 1500 * time.Millisecond
	defaultGenerationTimeout = 30 * time.Second
	defaultContextWindow     = 5
)

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string   `yaml:"listen_addr"`
	DBPath                string   `yaml:"db_path"`
	Language              string   `yaml:"language"`
	SilenceTimeout        string   `yaml:"silence_timeout"`
	ContextWindow         int      `yaml:"context_window"`
	DefaultTopic          string   `yaml:"default_topic"`
	Topics                []string `yaml:"topics"`
	Model                 string   `yaml:"model"`
	Temperature           float32  `yaml:"temperature"`
	MaxTokens             int      `yaml:"max_tokens"`
	GenerationTimeout     string   `yaml:"generation_timeout"`
	TTSProvider           string   `yaml:"tts_provider"`
	Voice                 string   `yaml:"voice"`
	SpeakerSampleRate     int      `yaml:"speaker_sample_rate"`
	MicSampleRate         int      `yaml:"mic_sample_rate"`
	MicSampleRates        []int    `yaml:"mic_sample_rates"`
	Greeting              string   `yaml:"greeting"`
	AzureEndpoint         string   `yaml:"azure_endpoint"`
	GDriveFolderID        string   `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string   `yaml:"google_credentials_file"`

	// Secrets: env vars only, never serialized to YAML.
	DeepgramAPIKey    string `yaml:"-"`
	OpenAIAPIKey      string `yaml:"-"`
	AnthropicAPIKey   string `yaml:"-"`
	GeminiAPIKey      string `yaml:"-"`
	AzureOpenAIAPIKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		DBPath:                "data/voice-tutor.db",
		Language:              "en-NG",
		SilenceTimeout:        "1500ms",
		ContextWindow:         defaultContextWindow,
		DefaultTopic:          "VAT",
		Topics:                []string{"VAT", "WHT", "CIT", "E-Invoicing"},
		Model:                 "openai/gpt-4o-mini",
		Temperature:           0.7,
		MaxTokens:             1000,
		GenerationTimeout:     "30s",
		TTSProvider:           "openai",
		Voice:                 "alloy",
		SpeakerSampleRate:     24000,
		MicSampleRate:         16000,
		Greeting:              "Hello! I'm your tax tutor. Let's talk about {{topic}}. What would you like to know?",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedSilenceTimeout returns SilenceTimeout as a time.Duration,
// falling back to 1.5s if the value is invalid.
func (c *Config) ParsedSilenceTimeout() time.Duration {
	d, err := time.ParseDuration(c.SilenceTimeout)
	if err != nil || d <= 0 {
		return defaultSilenceTimeout
	}
	return d
}

func (c *Config) ParsedGenerationTimeout() time.Duration {
	d, err := time.ParseDuration(c.GenerationTimeout)
	if err != nil || d <= 0 {
		return defaultGenerationTimeout
	}
	return d
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100, 32000, 24000}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

// LLMAPIKey returns the secret for the provider named in Model.
func (c *Config) LLMAPIKey() string {
	provider, _, _ := strings.Cut(c.Model, "/")
	return c.APIKeyFor(provider)
}

// APIKeyFor returns the secret for a generation provider.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "azure":
		return c.AzureOpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

// TTSAPIKey returns the secret for the configured speech provider.
func (c *Config) TTSAPIKey() string {
	if c.TTSProvider == "deepgram" {
		return c.DeepgramAPIKey
	}
	return c.OpenAIAPIKey
}

func (c *Config) HasTopic(topic string) bool {
	return slices.Contains(c.Topics, topic)
}

func applyEnvOverrides(cfg *Config) {
	strOverrides := map[string]*string{
		"LISTEN_ADDR":             &cfg.ListenAddr,
		"DB_PATH":                 &cfg.DBPath,
		"LANGUAGE":                &cfg.Language,
		"SILENCE_TIMEOUT":         &cfg.SilenceTimeout,
		"DEFAULT_TOPIC":           &cfg.DefaultTopic,
		"MODEL":                   &cfg.Model,
		"GENERATION_TIMEOUT":      &cfg.GenerationTimeout,
		"TTS_PROVIDER":            &cfg.TTSProvider,
		"VOICE":                   &cfg.Voice,
		"GREETING":                &cfg.Greeting,
		"AZURE_ENDPOINT":          &cfg.AzureEndpoint,
		"GDRIVE_FOLDER_ID":        &cfg.GDriveFolderID,
		"GOOGLE_CREDENTIALS_FILE": &cfg.GoogleCredentialsFile,
	}
	for key, dst := range strOverrides {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	intOverrides := map[string]*int{
		"CONTEXT_WINDOW":      &cfg.ContextWindow,
		"MAX_TOKENS":          &cfg.MaxTokens,
		"SPEAKER_SAMPLE_RATE": &cfg.SpeakerSampleRate,
		"MIC_SAMPLE_RATE":     &cfg.MicSampleRate,
	}
	for key, dst := range intOverrides {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				*dst = n
			}
		}
	}

	if v := os.Getenv(EnvPrefix + "TEMPERATURE"); v != "" {
		if t, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil && t >= 0 {
			cfg.Temperature = float32(t)
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "TOPICS"); v != "" {
		cfg.Topics = parseList(v)
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = secret("DEEPGRAM_API_KEY")
	cfg.OpenAIAPIKey = secret("OPENAI_API_KEY")
	cfg.AnthropicAPIKey = secret("ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = secret("GEMINI_API_KEY")
	cfg.AzureOpenAIAPIKey = secret("AZURE_OPENAI_API_KEY")
}

// secret prefers the namespaced variable and falls back to the provider's
// conventional name.
func secret(name string) string {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		return v
	}
	return os.Getenv(name)
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.DeepgramAPIKey == "" {
		warnings = append(warnings, "Deepgram API key not configured; voice calls are disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
	}

	provider, _, ok := strings.Cut(cfg.Model, "/")
	if !ok {
		warnings = append(warnings, fmt.Sprintf("Invalid model %q; expected provider/model_name.", cfg.Model))
	} else if cfg.LLMAPIKey() == "" {
		warnings = append(warnings, fmt.Sprintf("API key for model provider %q not configured; the tutor cannot reply.", provider))
	}
	if provider == "azure" && cfg.AzureEndpoint == "" {
		warnings = append(warnings, "azure_endpoint is required for azure models.")
	}

	switch cfg.TTSProvider {
	case "openai", "deepgram":
		if cfg.TTSAPIKey() == "" {
			warnings = append(warnings, fmt.Sprintf("API key for tts_provider %q not configured; replies will not be spoken.", cfg.TTSProvider))
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown tts_provider %q; using openai.", cfg.TTSProvider))
		cfg.TTSProvider = "openai"
	}

	if d, err := time.ParseDuration(cfg.SilenceTimeout); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid silence_timeout %q; using default %s.", cfg.SilenceTimeout, defaultSilenceTimeout))
	}
	if d, err := time.ParseDuration(cfg.GenerationTimeout); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid generation_timeout %q; using default %s.", cfg.GenerationTimeout, defaultGenerationTimeout))
	}
	if cfg.ContextWindow <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid context_window %d; using default %d.", cfg.ContextWindow, defaultContextWindow))
		cfg.ContextWindow = defaultContextWindow
	}

	if len(cfg.Topics) == 0 {
		cfg.Topics = defaults().Topics
	}
	if cfg.DefaultTopic == "" {
		cfg.DefaultTopic = cfg.Topics[0]
	}
	if !cfg.HasTopic(cfg.DefaultTopic) {
		cfg.Topics = append(cfg.Topics, cfg.DefaultTopic)
	}

	return warnings
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}

func parseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" && !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}
