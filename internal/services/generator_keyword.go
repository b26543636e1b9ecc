package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/cocoja/cocoja-backend/internal/logger"
)

type keywordReply struct {
  keyword string
  reply   string
}

// Scanned in order; the first keyword found in the input wins.
var defaultKeywordReplies = []keywordReply{
  {keyword: "bonjour", reply: "Bonjour ! Comment puis-je vous aider aujourd'hui ?"},
  {keyword: "salut", reply: "Salut ! Je suis là pour répondre à vos questions."},
  {keyword: "comment vas-tu", reply: "Je vais bien, merci ! Et vous ?"},
  {keyword: "merci", reply: "De rien ! N'hésitez pas si vous avez d'autres questions."},
}

const defaultReplyTemplate = "J'ai bien reçu votre message : '%s'. Je suis actuellement en mode simulation. Intégrez votre modèle NLP pour des réponses intelligentes."

// KeywordGenerator is the deterministic fallback. It ignores history and never fails.
type KeywordGenerator struct {
  log     *logger.Logger
  replies []keywordReply
}

func NewKeywordGenerator(log *logger.Logger) *KeywordGenerator {
  return &KeywordGenerator{
    log:     log.With("generator", "KeywordGenerator"),
    replies: defaultKeywordReplies,
  }
}

func (kg *KeywordGenerator) Generate(ctx context.Context, userInput string, history []HistoryEntry) (string, error) {
  lowered := strings.ToLower(strings.TrimSpace(userInput))
  for _, kr := range kg.replies {
    if strings.Contains(lowered, kr.keyword) {
      kg.log.Debug("Keyword matched", "keyword", kr.keyword)
      return kr.reply, nil
    }
  }
  return fmt.Sprintf(defaultReplyTemplate, userInput), nil
}
