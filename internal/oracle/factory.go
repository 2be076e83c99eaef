package oracle

import (
	"fmt"
	"strings"

	"github.com/Veraticus/docket/internal/common"
)

// NewClient builds the configured oracle client. When a rate limit is
// configured the client is wrapped in a token bucket.
func NewClient(cfg Config) (Client, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "claudecode":
		client, err = newClaudeCodeClient(cfg)
	case "":
		return nil, fmt.Errorf("%w: oracle provider is not set", common.ErrMissingConfig)
	default:
		return nil, fmt.Errorf("%w: unsupported oracle provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit > 0 {
		return NewRateLimited(client, cfg.RateLimit), nil
	}
	return client, nil
}
