package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/docket/internal/oracle"
)

// createOracleClient creates a judgment oracle client based on
// configuration. This function is shared by every command that runs the
// analysis pipeline.
func createOracleClient() (oracle.Client, error) {
	provider := viper.GetString("oracle.provider")
	if provider == "" {
		provider = "anthropic" // default provider
	}

	// Build config from viper settings. Model defaults are provider
	// specific and live in the clients themselves.
	config := oracle.Config{
		Provider:       provider,
		Model:          viper.GetString("oracle.model"),
		Temperature:    viper.GetFloat64("oracle.temperature"),
		MaxTokens:      viper.GetInt("oracle.max_tokens"),
		RateLimit:      viper.GetInt("oracle.rate_limit"),
		ClaudeCodePath: viper.GetString("oracle.claude_code_path"),
	}

	if config.RateLimit == 0 {
		config.RateLimit = 60 // requests per minute
	}

	// Get API key based on provider
	switch provider {
	case "anthropic":
		// Check viper first, then environment variable
		apiKey := viper.GetString("oracle.anthropic_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key not found in config or ANTHROPIC_API_KEY environment variable")
		}
		config.APIKey = apiKey

	case "openai":
		// Check viper first, then environment variable
		apiKey := viper.GetString("oracle.openai_api_key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}
		config.APIKey = apiKey

	case "claudecode":
		// Claude Code doesn't need an API key
		config.APIKey = ""

	default:
		return nil, fmt.Errorf("unsupported oracle provider: %s", provider)
	}

	client, err := oracle.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	return client, nil
}
