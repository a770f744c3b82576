package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/homie43/car-fit-chat-backend/internal/config"
)

// Message is one turn of conversation history passed to the model.
type Message struct {
	Role    string
	Content string
}

// Client wraps an OpenAI-compatible chat and embedding API.
type Client struct {
	api     *openai.Client
	cfg     config.OpenAIConfig
	enabled bool
}

func NewClient(cfg config.OpenAIConfig) *Client {
	if !cfg.Enabled {
		return &Client{cfg: cfg}
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		apiCfg.BaseURL = cfg.APIBase
	}

	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		cfg:     cfg,
		enabled: true,
	}
}

// Enabled reports whether an API key was configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// StreamChat sends the conversation to the chat model and feeds response
// fragments to onDelta in arrival order. A non-nil error from onDelta stops
// the stream and is returned to the caller unchanged, so callers can abort
// on their own conditions and recognize them afterwards.
func (c *Client) StreamChat(ctx context.Context, system string, history []Message, user string, onDelta func(string) error) error {
	if !c.enabled {
		return errors.New("llm: client is not configured")
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.ChatModel,
		Messages:    msgs,
		Temperature: float32(c.cfg.ChatTemperature),
		MaxTokens:   c.cfg.ChatMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to receive stream chunk: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.enabled {
		return nil, errors.New("llm: client is not configured")
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input:      []string{text},
		Dimensions: c.cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("llm: empty embedding response")
	}

	return resp.Data[0].Embedding, nil
}
