package services

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/types"
)

const DefaultHistoryLimit = 10

type AskResult struct {
  Answer    string `json:"answer"`
  Persisted bool   `json:"-"`
}

type ChatService interface {
  Ask(ctx context.Context, question string, conversationID *uuid.UUID) (*AskResult, error)
}

type chatService struct {
  db                *gorm.DB
  log               *logger.Logger
  conversationRepo  repos.ConversationRepo
  messageRepo       repos.MessageRepo
  generator         ResponseGenerator
  historyLimit      int
}

func NewChatService(
  db                *gorm.DB,
  log               *logger.Logger,
  conversationRepo  repos.ConversationRepo,
  messageRepo       repos.MessageRepo,
  generator         ResponseGenerator,
  historyLimit      int,
) ChatService {
  serviceLog := log.With("service", "ChatService")
  if historyLimit < 0 {
    historyLimit = DefaultHistoryLimit
  }
  return &chatService{
    db:               db,
    log:              serviceLog,
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
    generator:        generator,
    historyLimit:     historyLimit,
  }
}

// Ask answers question. Guests and unresolvable conversation ids get an answer
// without history and nothing is stored.
func (cs *chatService) Ask(ctx context.Context, question string, conversationID *uuid.UUID) (*AskResult, error) {
  //1) Validate
  if question == "" {
    return nil, &InputError{Message: "question is required"}
  }

  //2) Resolve conversation and history
  var conv *types.Conversation
  var history []HistoryEntry
  userID, authenticated := requestdata.Identity(ctx)
  if authenticated && conversationID != nil {
    found, err := cs.conversationRepo.GetOwnedByID(ctx, nil, *conversationID, userID)
    if err != nil {
      cs.log.Debug("Conversation not resolved, answering without history", "conversationID", *conversationID, "error", err)
    } else {
      conv = found
      history = cs.loadHistory(ctx, conv.ID)
    }
  }

  //3) Generate
  answer, err := cs.generator.Generate(ctx, question, history)
  if err != nil {
    cs.log.Warn("Response generation failed", "error", err)
    return nil, &GenerationError{Cause: err}
  }

  //4) Persist
  result := &AskResult{Answer: answer}
  if conv != nil {
    if pErr := cs.persistExchange(ctx, conv, question, answer); pErr != nil {
      cs.log.Error("Failed to persist exchange, returning answer anyway", "conversationID", conv.ID, "error", pErr)
    } else {
      result.Persisted = true
    }
  }
  return result, nil
}

func (cs *chatService) loadHistory(ctx context.Context, convID uuid.UUID) []HistoryEntry {
  if cs.historyLimit == 0 {
    return nil
  }
  msgs, err := cs.messageRepo.GetRecentByConversationID(ctx, nil, convID, cs.historyLimit)
  if err != nil {
    cs.log.Warn("Failed to load history, answering without it", "conversationID", convID, "error", err)
    return nil
  }
  if len(msgs) == 0 {
    return nil
  }
  history := make([]HistoryEntry, 0, len(msgs))
  for _, m := range msgs {
    history = append(history, HistoryEntry{Role: m.Role, Content: m.Content})
  }
  return history
}

func (cs *chatService) persistExchange(ctx context.Context, conv *types.Conversation, question, answer string) error {
  return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := cs.messageRepo.Create(ctx, tx, []*types.Message{
      {ConversationID: conv.ID, Role: types.RoleUser, Content: question},
      {ConversationID: conv.ID, Role: types.RoleAssistant, Content: answer},
    }); err != nil {
      return err
    }
    return cs.conversationRepo.Touch(ctx, tx, conv.ID, time.Now())
  })
}
