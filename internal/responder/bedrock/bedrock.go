package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	responderdomain "github.com/smallbiznis/grievance-portal/internal/responder/domain"
)

const anthropicVersion = "bedrock-2023-05-31"

type invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Client invokes Anthropic models hosted on Bedrock.
type Client struct {
	api invoker
}

func New(cfg aws.Config) *Client {
	return &Client{api: bedrockruntime.NewFromConfig(cfg)}
}

type invokeBody struct {
	AnthropicVersion string    `json:"anthropic_version"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *Client) Name() string {
	return "bedrock"
}

func (c *Client) Complete(ctx context.Context, req responderdomain.Request) (string, error) {
	body, err := json.Marshal(invokeBody{
		AnthropicVersion: anthropicVersion,
		System:           req.System,
		Messages:         []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", responderdomain.ErrEmptyOutput
	}
	return b.String(), nil
}
