package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/siherrmann/graphrag/internal/errs"
)

// HTTPProvider is a generic REST LLM backend used for answer synthesis and
// cluster summarization, retried with exponential backoff per spec §5
// ("bounded retries with exponential backoff, default 2 retries, 1s -> 2s").
type HTTPProvider struct {
	BaseURL    string
	APIKey     string
	Model      string
	Client     *http.Client
	MaxRetries uint64
}

// NewHTTPProvider constructs a provider with spec-default timeouts and
// retry policy.
func NewHTTPProvider(baseURL, apiKey, model string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		Client:     &http.Client{Timeout: 30 * time.Second},
		MaxRetries: 2,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *HTTPProvider) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	var reply string
	operation := func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return backoff.Permanent(err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if p.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
		}

		resp, err := p.Client.Do(httpReq)
		if err != nil {
			return err // transient: retry
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("llm provider returned %d: %s", resp.StatusCode, respBody)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("llm provider returned %d: %s", resp.StatusCode, respBody))
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decode llm response: %w", err))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("llm response had no choices"))
		}

		reply = parsed.Choices[0].Message.Content
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(time.Second),
		backoff.WithMaxInterval(2*time.Second),
	), p.MaxRetries)

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", errs.New(errs.UpstreamTransient, "llm completion", err)
	}

	return reply, nil
}

// Answer implements AnswerFunc.
func (p *HTTPProvider) Answer(ctx context.Context, question, context_ string) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context_, question)
	return p.complete(ctx, "Answer the question using only the provided context.", prompt)
}

// Summarize implements SummarizeFunc.
func (p *HTTPProvider) Summarize(ctx context.Context, topTerms, sampleEntities []string, maxTokens int) (string, string, error) {
	prompt := fmt.Sprintf(
		"Top terms: %v\nSample entities: %v\nRespond with a short label (<=10 words) on the first line and a one-paragraph summary (<=%d tokens) after.",
		topTerms, sampleEntities, maxTokens,
	)
	reply, err := p.complete(ctx, "Label and summarize this graph community.", prompt)
	if err != nil {
		return "", "", err
	}
	return splitLabelSummary(reply)
}

func splitLabelSummary(reply string) (label, summary string, err error) {
	for i, r := range reply {
		if r == '\n' {
			return reply[:i], reply[i+1:], nil
		}
	}
	return reply, "", nil
}
