package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .policyvoice.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to policyvoice! Let's configure your assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{string(ProviderOpenAI), string(ProviderOllama)},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Chat model",
		Default: defaultModels[cfg.Provider],
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Session store.
	storePrompt := promptui.Select{
		Label: "Where should conversations be stored",
		Items: []string{
			"sqlite  (local file under data_dir)",
			"redis   (shared across instances)",
		},
	}
	storeIdx, _, err := storePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("store selection: %w", err)
	}
	cfg.Store = []StoreType{StoreSQLite, StoreRedis}[storeIdx]

	if cfg.Store == StoreRedis {
		redisPrompt := promptui.Prompt{Label: "Redis URL", Default: cfg.RedisURL}
		if cfg.RedisURL, err = redisPrompt.Run(); err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
	}

	// 4. Knowledge base.
	kbPrompt := promptui.Prompt{
		Label:   "Knowledge base file (.json or .yaml)",
		Default: cfg.KnowledgeBase,
	}
	if cfg.KnowledgeBase, err = kbPrompt.Run(); err != nil {
		return nil, fmt.Errorf("knowledge base: %w", err)
	}

	// 5. Port.
	portPrompt := promptui.Prompt{
		Label:    "HTTP port",
		Default:  strconv.Itoa(cfg.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 6. Extra CORS origins.
	originsPrompt := promptui.Prompt{
		Label:   "Allowed browser origins (comma-separated, blank for localhost only)",
		Default: "",
	}
	originsStr, err := originsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("allowed origins: %w", err)
	}
	cfg.AllowedOrigins = splitAndTrim(originsStr)

	// Check for API key. Transcription always needs OpenAI.
	if os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Println("\nNote: set OPENAI_API_KEY in your environment or .env before running policyvoice server.")
	}

	// Save to .policyvoice.yml.
	if err := cfg.Save(DefaultConfigPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultConfigPath)
	return cfg, nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
