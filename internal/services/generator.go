package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/cocoja/cocoja-backend/internal/logger"
)

// HistoryEntry is one prior turn handed to a generator as context.
type HistoryEntry struct {
  Role    string `json:"role"`
  Content string `json:"content"`
}

// ResponseGenerator produces the assistant reply for userInput. history may be
// nil or empty. Implementations must be safe for concurrent use.
type ResponseGenerator interface {
  Generate(ctx context.Context, userInput string, history []HistoryEntry) (string, error)
}

const (
  GeneratorBackendKeyword = "keyword"
  GeneratorBackendOpenAI  = "openai"
)

type GeneratorConfig struct {
  Backend       string
  APIKey        string
  BaseURL       string
  Model         string
  SystemPrompt  string
  MaxTokens     int
  Temperature   float32
  Timeout       time.Duration
}

// NewResponseGenerator builds the generator selected by cfg.Backend. It is
// called once at startup and the result shared by every request.
func NewResponseGenerator(cfg GeneratorConfig, log *logger.Logger) (ResponseGenerator, error) {
  switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
  case "", GeneratorBackendKeyword:
    return NewKeywordGenerator(log), nil
  case GeneratorBackendOpenAI:
    return NewOpenAIGenerator(cfg, log)
  default:
    return nil, fmt.Errorf("unknown generator backend %q (expected %q or %q)", cfg.Backend, GeneratorBackendKeyword, GeneratorBackendOpenAI)
  }
}

// FormatHistory renders history as "ROLE: content" lines.
func FormatHistory(history []HistoryEntry) string {
  lines := make([]string, 0, len(history))
  for _, h := range history {
    role := h.Role
    if role == "" {
      role = "user"
    }
    lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(role), h.Content))
  }
  return strings.Join(lines, "\n")
}
