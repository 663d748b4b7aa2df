package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ashureev/threadrelay/internal/domain"
)

// OpenAIClient implements Client with the OpenAI Assistants (threads/runs) API.
type OpenAIClient struct {
	client openai.Client
}

// NewOpenAIClient creates a client for the given credential. An empty
// baseURL uses the SDK default endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// CreateThread allocates an empty thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

// DeleteThread deletes a thread by id.
func (c *OpenAIClient) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := c.client.Beta.Threads.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// AppendMessage posts a user message to the thread.
func (c *OpenAIClient) AppendMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return fmt.Errorf("append message to thread %s: %w", threadID, err)
	}
	return nil
}

// CreateRun starts a run with the given assistant.
func (c *OpenAIClient) CreateRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("create run on thread %s: %w", threadID, err)
	}
	return run.ID, nil
}

// GetRun retrieves a run and reports its status.
func (c *OpenAIClient) GetRun(ctx context.Context, threadID, runID string) (domain.RunStatus, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return "", fmt.Errorf("retrieve run %s: %w", runID, err)
	}
	return domain.RunStatus(run.Status), nil
}

// LatestMessage lists the thread's messages with limit 1. The API orders
// newest first by default.
func (c *OpenAIClient) LatestMessage(ctx context.Context, threadID string) (*Message, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Limit: openai.Int(1),
	})
	if err != nil {
		return nil, fmt.Errorf("list messages on thread %s: %w", threadID, err)
	}
	if page == nil || len(page.Data) == 0 {
		return nil, nil
	}

	latest := page.Data[0]
	msg := &Message{
		ID:      latest.ID,
		Role:    string(latest.Role),
		Content: make([]ContentSegment, 0, len(latest.Content)),
	}
	for _, part := range latest.Content {
		seg := ContentSegment{Type: part.Type}
		if part.Type == ContentTypeText {
			seg.Text = part.Text.Value
		}
		msg.Content = append(msg.Content, seg)
	}
	return msg, nil
}
