// Package demo contains example components that exercise real provider
// SDKs through the Data-fetch hook contract, proving the
// suspension mechanism against a genuine async backend instead of a
// synthetic one. Nothing in pkg/compiler imports this package — model
// provider adapters are an external collaborator/interface only, and
// these components exist purely as worked examples.
package demo

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// AnthropicTokenEstimatorConfig configures NewAnthropicTokenEstimator.
type AnthropicTokenEstimatorConfig struct {
	APIKey string
	Model  string
	Text   string
}

// NewAnthropicTokenEstimator returns a composite that resolves the exact
// input-token count for Text by calling Anthropic's Messages.CountTokens
// endpoint, suspending via UseData until the response arrives — the
// provider-backed counterpart to internal/tokenest's local estimators.
func NewAnthropicTokenEstimator() *hookrt.Component {
	return hookrt.NewComponent("AnthropicTokenEstimator", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		cfg, _ := props["config"].(AnthropicTokenEstimatorConfig)
		model := cfg.Model
		if model == "" {
			model = "claude-sonnet-4-20250514"
		}

		count, err := hookrt.UseData(r, "anthropic-token-count:"+cfg.Text, hookrt.DataOptions{}, func(ctx context.Context) (int64, error) {
			client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
			resp, err := client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
				Model: anthropic.Model(model),
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(cfg.Text)),
				},
			})
			if err != nil {
				return 0, fmt.Errorf("anthropic: count tokens: %w", err)
			}
			return resp.InputTokens, nil
		})
		if err != nil {
			return node.Node{}, err
		}

		return node.TextNode(fmt.Sprintf("%d", count)), nil
	})
}
