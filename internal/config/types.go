package config

import "time"

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// StoreType identifies a session store backend.
type StoreType string

const (
	StoreSQLite StoreType = "sqlite"
	StoreRedis  StoreType = "redis"
)

// Config is the top-level policyvoice configuration, corresponding to .policyvoice.yml.
type Config struct {
	Provider    ProviderType  `yaml:"provider" koanf:"provider"`
	Model       string        `yaml:"model" koanf:"model"`
	Temperature float64       `yaml:"temperature" koanf:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" koanf:"max_tokens"`
	LLMRPM      int           `yaml:"llm_rpm" koanf:"llm_rpm"`
	LLMTimeout  time.Duration `yaml:"llm_timeout" koanf:"llm_timeout"`

	STTModel    string        `yaml:"stt_model" koanf:"stt_model"`
	STTLanguage string        `yaml:"stt_language" koanf:"stt_language"`
	STTTimeout  time.Duration `yaml:"stt_timeout" koanf:"stt_timeout"`

	KnowledgeBase string    `yaml:"knowledge_base" koanf:"knowledge_base"`
	DataDir       string    `yaml:"data_dir" koanf:"data_dir"`
	Store         StoreType `yaml:"store" koanf:"store"`
	RedisURL      string    `yaml:"redis_url" koanf:"redis_url"`

	Port            int      `yaml:"port" koanf:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" koanf:"allowed_origins"`
	MaxMessageBytes int64    `yaml:"max_message_bytes" koanf:"max_message_bytes"`

	LogLevel  string `yaml:"log_level" koanf:"log_level"`
	LogFormat string `yaml:"log_format" koanf:"log_format"`
}
