package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/docket/internal/common"
)

func TestNewClient(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		client, err := NewClient(Config{Provider: "anthropic", APIKey: "k"})
		require.NoError(t, err)
		_, ok := client.(*anthropicClient)
		assert.True(t, ok)
	})

	t.Run("provider is case-insensitive", func(t *testing.T) {
		client, err := NewClient(Config{Provider: "OpenAI", APIKey: "k"})
		require.NoError(t, err)
		_, ok := client.(*openAIClient)
		assert.True(t, ok)
	})

	t.Run("rate limit wraps the client", func(t *testing.T) {
		client, err := NewClient(Config{Provider: "anthropic", APIKey: "k", RateLimit: 10})
		require.NoError(t, err)
		limited, ok := client.(*RateLimited)
		require.True(t, ok)
		limited.Close()
	})

	t.Run("missing provider", func(t *testing.T) {
		_, err := NewClient(Config{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrMissingConfig))
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewClient(Config{Provider: "palantir"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrInvalidConfig))
	})

	t.Run("claudecode with bad path", func(t *testing.T) {
		_, err := NewClient(Config{Provider: "claudecode", ClaudeCodePath: "/nonexistent/claude-bin"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}
