package config

import "time"

// DefaultConfigPath is the config file read when --config is not given.
const DefaultConfigPath = ".policyvoice.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:        ProviderOpenAI,
		Model:           "gpt-4o-mini",
		Temperature:     0,
		MaxTokens:       150,
		LLMRPM:          0,
		LLMTimeout:      30 * time.Second,
		STTModel:        "whisper-1",
		STTLanguage:     "en",
		STTTimeout:      30 * time.Second,
		KnowledgeBase:   "knowledge_base.json",
		DataDir:         "data",
		Store:           StoreSQLite,
		RedisURL:        "redis://localhost:6379/0",
		Port:            8000,
		MaxMessageBytes: 10 << 20,
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// defaultModels is the model suggested by the wizard for each provider.
var defaultModels = map[ProviderType]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderOllama: "llama3.2",
}
