package demo

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// OpenAITokenEstimatorConfig configures NewOpenAITokenEstimator.
type OpenAITokenEstimatorConfig struct {
	APIKey string
	Model  string
	Text   string
}

// NewOpenAITokenEstimator is a second provider-backed example, showing the
// Data hook's keyed-cache contract is provider-agnostic: it estimates
// prompt-token usage for Text via OpenAI's chat completions endpoint
// (requesting a single output token just to read back Usage.PromptTokens).
func NewOpenAITokenEstimator() *hookrt.Component {
	return hookrt.NewComponent("OpenAITokenEstimator", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		cfg, _ := props["config"].(OpenAITokenEstimatorConfig)
		model := cfg.Model
		if model == "" {
			model = openai.GPT4oMini
		}

		count, err := hookrt.UseData(r, "openai-token-count:"+cfg.Text, hookrt.DataOptions{}, func(ctx context.Context) (int, error) {
			client := openai.NewClient(cfg.APIKey)
			resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: cfg.Text},
				},
				MaxTokens: 1,
			})
			if err != nil {
				return 0, fmt.Errorf("openai: estimate tokens: %w", err)
			}
			return resp.Usage.PromptTokens, nil
		})
		if err != nil {
			return node.Node{}, err
		}

		return node.TextNode(fmt.Sprintf("%d", count)), nil
	})
}
