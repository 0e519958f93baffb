package builtin

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/config"
)

// aiRequestTimeout is the action's own deadline — the notes there is
// no built-in per-action timeout and the AI request imposes its own.
const aiRequestTimeout = 60 * time.Second

// AIAction runs an aiRequest node against an OpenAI-compatible
// completions API.
type AIAction struct {
	*action.BaseAction
}

func NewAIAction() *AIAction {
	return &AIAction{BaseAction: action.NewBaseAction("aiRequest")}
}

func (a *AIAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	c, err := config.ParseConfig[config.AIConfig](cfg)
	if err != nil {
		return action.Result{Error: err.Error()}
	}
	if err := c.Validate(); err != nil {
		return action.Result{Error: err.Error()}
	}

	cred, ok := services.GetCredential(ctx, c.CredentialID)
	if !ok {
		return action.Result{Error: "Failed to decrypt data"}
	}
	apiKey, _ := cred["apiKey"].(string)
	if apiKey == "" {
		return action.Result{Error: "ai credential missing apiKey"}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL, ok := cred["baseURL"].(string); ok && baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	requestCtx, cancel := context.WithTimeout(ctx, aiRequestTimeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if c.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: c.Prompt})

	model, _ := cred["model"].(string)
	if model == "" {
		model = openai.GPT4oMini
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if c.Temperature != nil {
		req.Temperature = float32(*c.Temperature)
	}
	if c.MaxTokens != nil {
		req.MaxTokens = *c.MaxTokens
	}

	resp, err := client.CreateChatCompletion(requestCtx, req)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("ai request failed: %v", err)}
	}
	if len(resp.Choices) == 0 {
		return action.Result{Error: "ai request returned no choices"}
	}

	return action.Result{
		Success: true,
		Output: map[string]interface{}{
			"text":         resp.Choices[0].Message.Content,
			"model":        resp.Model,
			"finishReason": string(resp.Choices[0].FinishReason),
		},
	}
}

func (a *AIAction) Validate(cfg map[string]interface{}) error {
	c, err := config.ParseConfig[config.AIConfig](cfg)
	if err != nil {
		return err
	}
	return c.Validate()
}
