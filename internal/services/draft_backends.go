package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"github.com/staysignal/backend/internal/models"
	"google.golang.org/genai"
)

// draftInstruction is sent as the system turn to every backend so the
// reply comes back ready to post.
const draftInstruction = "You write public replies to hotel guest reviews on behalf of the property. " +
	"Answer with the reply text only: no subject line, no placeholders, no notes to the manager."

// completion is one drafting call with the model's limits already resolved.
type completion struct {
	model       string
	prompt      string
	maxTokens   int
	temperature float32
}

type draftBackend func(ctx context.Context, cfg *models.LLMConfig, req completion) (string, error)

// Model names used when a config leaves Model empty.
var defaultModels = map[string]string{
	"openai":    openai.GPT4oMini,
	"anthropic": "claude-sonnet-4-20250514",
	"ollama":    "llama3",
	"gemini":    "gemini-2.5-flash",
}

var draftBackends = map[string]draftBackend{
	"openai":    openAIDraft,
	"azure":     azureDraft,
	"anthropic": anthropicDraft,
	"ollama":    ollamaDraft,
	"gemini":    geminiDraft,
}

func newCompletion(cfg *models.LLMConfig, prompt string) completion {
	req := completion{
		model:       cfg.Model,
		prompt:      prompt,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
	}
	if req.model == "" {
		req.model = defaultModels[cfg.Provider]
	}
	if req.maxTokens <= 0 {
		req.maxTokens = defaultDraftTokens
	}
	if req.temperature <= 0 {
		req.temperature = defaultDraftTemperature
	}
	return req
}

// runBackend sends the prompt to cfg's provider. Unknown providers are
// treated as OpenAI-compatible endpoints.
func runBackend(ctx context.Context, cfg *models.LLMConfig, prompt string) (string, error) {
	backend, ok := draftBackends[cfg.Provider]
	if !ok {
		backend = openAIDraft
	}
	text, err := backend(ctx, cfg, newCompletion(cfg, prompt))
	if err != nil {
		return "", fmt.Errorf("%s: %w", cfg.Provider, err)
	}
	return text, nil
}

func openAIDraft(ctx context.Context, cfg *models.LLMConfig, req completion) (string, error) {
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	return chatDraft(ctx, openai.NewClientWithConfig(conf), req)
}

// azureDraft addresses the deployment named in Model.
func azureDraft(ctx context.Context, cfg *models.LLMConfig, req completion) (string, error) {
	return chatDraft(ctx, openai.NewClientWithConfig(openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)), req)
}

func chatDraft(ctx context.Context, client *openai.Client, req completion) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: draftInstruction},
			{Role: openai.ChatMessageRoleUser, Content: req.prompt},
		},
		MaxTokens:   req.maxTokens,
		Temperature: req.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyDraft
	}
	return resp.Choices[0].Message.Content, nil
}

func anthropicDraft(ctx context.Context, cfg *models.LLMConfig, req completion) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.model),
		MaxTokens:   int64(req.maxTokens),
		Temperature: anthropic.Float(float64(req.temperature)),
		System:      []anthropic.TextBlockParam{{Text: draftInstruction}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.prompt))},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func ollamaDraft(ctx context.Context, cfg *models.LLMConfig, req completion) (string, error) {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}

	stream := false
	var sb strings.Builder
	err = api.NewClient(u, http.DefaultClient).Chat(ctx, &api.ChatRequest{
		Model:  req.model,
		Stream: &stream,
		Messages: []api.Message{
			{Role: "system", Content: draftInstruction},
			{Role: "user", Content: req.prompt},
		},
		Options: map[string]interface{}{
			"temperature": req.temperature,
			"num_predict": req.maxTokens,
		},
	}, func(part api.ChatResponse) error {
		sb.WriteString(part.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

func geminiDraft(ctx context.Context, cfg *models.LLMConfig, req completion) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, req.model, genai.Text(req.prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(draftInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(req.temperature),
		MaxOutputTokens:   int32(req.maxTokens),
	})
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
