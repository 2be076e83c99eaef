package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/docket/internal/common"
	"github.com/Veraticus/docket/internal/model"
)

func judgeRequest() *Request {
	return &Request{
		Identity:         "JOHN DOE",
		DocumentType:     model.DocTypeBankStatement,
		Fields:           model.DocumentRecord{"account_holder": "JOHN DOE", "ending_balance": 9000.00},
		RiskScore:        0.72,
		RiskLevel:        model.RiskHigh,
		Classification:   model.CustomerCleanHistory,
		TotalSubmissions: 3,
		Anomalies:        []string{"ending balance should be 12384.50 but the document reports 9000.00"},
	}
}

func anthropicEnvelope(text string) string {
	env := map[string]any{
		"id":    "msg_01",
		"type":  "message",
		"role":  "assistant",
		"model": "claude-3-sonnet-20240229",
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	data, _ := json.Marshal(env)
	return string(data)
}

func newTestAnthropic(t *testing.T, serverURL string) *anthropicClient {
	t.Helper()
	client, err := newAnthropicClient(Config{Provider: "anthropic", APIKey: "test-key"})
	require.NoError(t, err)

	ac, ok := client.(*anthropicClient)
	require.True(t, ok)
	ac.baseURL = serverURL
	return ac
}

func TestAnthropicJudge(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		verdict := "```json\n{\"recommendation\": \"ESCALATE\", \"confidence_score\": 0.66, \"summary\": \"Balance mismatch warrants review.\"}\n```"
		_, _ = w.Write([]byte(anthropicEnvelope(verdict)))
	}))
	defer server.Close()

	client := newTestAnthropic(t, server.URL)
	resp, err := client.Judge(context.Background(), judgeRequest())
	require.NoError(t, err)

	assert.Equal(t, model.RecommendEscalate, resp.Recommendation)
	assert.InDelta(t, 0.66, resp.Confidence, 1e-9)

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "2023-06-01", gotVersion)
	assert.Equal(t, systemPrompt, gotBody["system"])

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	userMsg, _ := messages[0].(map[string]any)
	content, _ := userMsg["content"].(string)
	assert.Contains(t, content, "JOHN DOE")
	assert.Contains(t, content, "12384.50")
	assert.Contains(t, content, "bank_statement")
}

func TestAnthropicJudge_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestAnthropic(t, server.URL)
	_, err := client.Judge(context.Background(), judgeRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrRateLimit))
}

func TestAnthropicJudge_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer server.Close()

	client := newTestAnthropic(t, server.URL)
	_, err := client.Judge(context.Background(), judgeRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAnthropicJudge_UnparseableVerdict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(anthropicEnvelope("I am unable to provide a structured verdict.")))
	}))
	defer server.Close()

	client := newTestAnthropic(t, server.URL)
	_, err := client.Judge(context.Background(), judgeRequest())
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestAnthropicRequiresKey(t *testing.T) {
	_, err := newAnthropicClient(Config{Provider: "anthropic"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrMissingConfig))
}
