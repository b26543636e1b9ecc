package services

import (
  "context"
  "fmt"
  "net/http"
  "strings"
  "time"

  "github.com/sashabaranov/go-openai"

  "github.com/cocoja/cocoja-backend/internal/logger"
)

// OpenAIGenerator talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, DeepSeek, a local gateway...).
type OpenAIGenerator struct {
  log           *logger.Logger
  client        *openai.Client
  model         string
  systemPrompt  string
  maxTokens     int
  temperature   float32
}

func NewOpenAIGenerator(cfg GeneratorConfig, log *logger.Logger) (*OpenAIGenerator, error) {
  generatorLog := log.With("generator", "OpenAIGenerator")
  if cfg.APIKey == "" {
    return nil, fmt.Errorf("missing OPENAI_API_KEY for the openai generator backend")
  }
  if cfg.Model == "" {
    cfg.Model = openai.GPT4oMini
  }
  if cfg.MaxTokens <= 0 {
    cfg.MaxTokens = 512
  }
  if cfg.Timeout <= 0 {
    cfg.Timeout = 30 * time.Second
  }
  clientConfig := openai.DefaultConfig(cfg.APIKey)
  if cfg.BaseURL != "" {
    clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
  }
  clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
  generatorLog.Info("OpenAI generator configured", "model", cfg.Model, "baseURL", clientConfig.BaseURL)
  return &OpenAIGenerator{
    log:          generatorLog,
    client:       openai.NewClientWithConfig(clientConfig),
    model:        cfg.Model,
    systemPrompt: cfg.SystemPrompt,
    maxTokens:    cfg.MaxTokens,
    temperature:  cfg.Temperature,
  }, nil
}

func (og *OpenAIGenerator) Generate(ctx context.Context, userInput string, history []HistoryEntry) (string, error) {
  messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
  if og.systemPrompt != "" {
    messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: og.systemPrompt})
  }
  for _, h := range history {
    role := openai.ChatMessageRoleUser
    if h.Role == openai.ChatMessageRoleAssistant {
      role = openai.ChatMessageRoleAssistant
    }
    messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: h.Content})
  }
  messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userInput})

  resp, err := og.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
    Model:       og.model,
    Messages:    messages,
    MaxTokens:   og.maxTokens,
    Temperature: og.temperature,
  })
  if err != nil {
    og.log.Warn("Chat completion call failed", "error", err)
    return "", err
  }
  if len(resp.Choices) == 0 {
    og.log.Warn("Chat completion returned no choices", "id", resp.ID)
    return "", fmt.Errorf("chat completion %q returned no choices", resp.ID)
  }
  og.log.Info("Chat completion call success", "id", resp.ID, "totalTokens", resp.Usage.TotalTokens)
  return resp.Choices[0].Message.Content, nil
}
