package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// claudeCodeClient implements Client by invoking the local Claude Code CLI.
type claudeCodeClient struct {
	model    string
	maxTurns int
	cliPath  string
}

func newClaudeCodeClient(cfg Config) (Client, error) {
	cliPath := cfg.ClaudeCodePath
	if cliPath == "" {
		cliPath = "claude"
	}

	if _, err := exec.LookPath(cliPath); err != nil {
		return nil, fmt.Errorf("claude CLI not found at %s: ensure @anthropic-ai/claude-code is installed", cliPath)
	}

	model := cfg.Model
	if model == "" {
		model = "sonnet"
	}

	return &claudeCodeClient{
		model:    model,
		maxTurns: 1, // single turn: ask once, judge once
		cliPath:  cliPath,
	}, nil
}

// Judge runs the CLI once and coerces its stdout.
func (c *claudeCodeClient) Judge(ctx context.Context, judgeReq *Request) (*Response, error) {
	prompt, err := buildPrompt(judgeReq)
	if err != nil {
		return nil, err
	}
	fullPrompt := systemPrompt + "\n\n" + prompt

	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, 60*time.Second)
		defer cancel()
	}

	args := []string{
		"-p", fullPrompt,
		"--output-format", "json",
		"--model", c.model,
		"--max-turns", strconv.Itoa(c.maxTurns),
	}
	cmd := exec.CommandContext(cmdCtx, c.cliPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("claude code error: %s", stderr.String())
		}
		return nil, fmt.Errorf("failed to execute claude: %w", err)
	}

	// The CLI wraps its answer in a JSON envelope; fall back to raw stdout
	// when the envelope itself does not parse.
	var envelope claudeCodeResponse
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		return parseResponse(stdout.String())
	}
	if envelope.IsError {
		return nil, fmt.Errorf("claude code reported an error in its response")
	}
	if envelope.Result == "" {
		return nil, fmt.Errorf("empty response from claude code")
	}

	return parseResponse(envelope.Result)
}

// claudeCodeResponse is the CLI's JSON envelope.
type claudeCodeResponse struct {
	Result    string  `json:"result"`
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	IsError   bool    `json:"is_error"`
	TotalCost float64 `json:"total_cost_usd"`
}
