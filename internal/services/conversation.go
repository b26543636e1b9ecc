package services

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/normalization"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/types"
)

const lastMessagePreviewLength = 100

type LastMessage struct {
  Role      string    `json:"role"`
  Content   string    `json:"content"`
  CreatedAt time.Time `json:"created_at"`
}

type ConversationSummary struct {
  ID            uuid.UUID     `json:"id"`
  Title         string        `json:"title"`
  CreatedAt     time.Time     `json:"created_at"`
  UpdatedAt     time.Time     `json:"updated_at"`
  MessageCount  int64         `json:"message_count"`
  LastMessage   *LastMessage  `json:"last_message"`
}

type ConversationDetail struct {
  ID            uuid.UUID         `json:"id"`
  Title         string            `json:"title"`
  CreatedAt     time.Time         `json:"created_at"`
  UpdatedAt     time.Time         `json:"updated_at"`
  MessageCount  int64             `json:"message_count"`
  Messages      []*types.Message  `json:"messages"`
}

type ConversationService interface {
  ListConversations(ctx context.Context) ([]*ConversationSummary, error)
  GetConversation(ctx context.Context, convID uuid.UUID) (*ConversationDetail, error)
  CreateConversation(ctx context.Context, title string) (*ConversationDetail, error)
  UpdateConversation(ctx context.Context, convID uuid.UUID, title *string) (*ConversationDetail, error)
  DeleteConversation(ctx context.Context, convID uuid.UUID) error
  AddMessage(ctx context.Context, convID uuid.UUID, role, content string) (*types.Message, error)
  ListConversationMessages(ctx context.Context, convID uuid.UUID) ([]*types.Message, error)
}

type conversationService struct {
  db                *gorm.DB
  log               *logger.Logger
  conversationRepo  repos.ConversationRepo
  messageRepo       repos.MessageRepo
}

func NewConversationService(
  db                *gorm.DB,
  log               *logger.Logger,
  conversationRepo  repos.ConversationRepo,
  messageRepo       repos.MessageRepo,
) ConversationService {
  serviceLog := log.With("service", "ConversationService")
  return &conversationService{
    db:               db,
    log:              serviceLog,
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
  }
}

func (cs *conversationService) ListConversations(ctx context.Context) ([]*ConversationSummary, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    return nil, ErrUnauthenticated
  }
  convs, err := cs.conversationRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("error listing conversations: %w", err)
  }
  convIDs := make([]uuid.UUID, 0, len(convs))
  for _, c := range convs {
    convIDs = append(convIDs, c.ID)
  }
  counts, err := cs.messageRepo.CountByConversationIDs(ctx, nil, convIDs)
  if err != nil {
    return nil, fmt.Errorf("error counting messages: %w", err)
  }
  latest, err := cs.messageRepo.GetLatestByConversationIDs(ctx, nil, convIDs)
  if err != nil {
    return nil, fmt.Errorf("error fetching latest messages: %w", err)
  }
  summaries := make([]*ConversationSummary, 0, len(convs))
  for _, c := range convs {
    summary := &ConversationSummary{
      ID:           c.ID,
      Title:        c.Title,
      CreatedAt:    c.CreatedAt,
      UpdatedAt:    c.UpdatedAt,
      MessageCount: counts[c.ID],
    }
    if m, ok := latest[c.ID]; ok {
      summary.LastMessage = &LastMessage{
        Role:      m.Role,
        Content:   normalization.Truncate(m.Content, lastMessagePreviewLength),
        CreatedAt: m.CreatedAt,
      }
    }
    summaries = append(summaries, summary)
  }
  return summaries, nil
}

func (cs *conversationService) GetConversation(ctx context.Context, convID uuid.UUID) (*ConversationDetail, error) {
  conv, err := cs.owned(ctx, nil, convID)
  if err != nil {
    return nil, err
  }
  return cs.detail(ctx, conv)
}

func (cs *conversationService) CreateConversation(ctx context.Context, title string) (*ConversationDetail, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    return nil, ErrUnauthenticated
  }
  conv := &types.Conversation{
    UserID: userID,
    Title:  normalization.ParseInputString(title),
  }
  if _, err := cs.conversationRepo.Create(ctx, nil, []*types.Conversation{conv}); err != nil {
    return nil, fmt.Errorf("error creating conversation: %w", err)
  }
  return &ConversationDetail{
    ID:        conv.ID,
    Title:     conv.Title,
    CreatedAt: conv.CreatedAt,
    UpdatedAt: conv.UpdatedAt,
    Messages:  []*types.Message{},
  }, nil
}

// UpdateConversation renames the conversation. A nil title leaves it as is.
func (cs *conversationService) UpdateConversation(ctx context.Context, convID uuid.UUID, title *string) (*ConversationDetail, error) {
  conv, err := cs.owned(ctx, nil, convID)
  if err != nil {
    return nil, err
  }
  if title = normalization.ParseInputStringPtr(title); title != nil {
    if *title == "" {
      return nil, NewValidationError("title", "This field may not be blank.")
    }
    if conv, err = cs.conversationRepo.UpdateTitle(ctx, nil, conv, *title); err != nil {
      return nil, fmt.Errorf("error updating conversation: %w", err)
    }
  }
  return cs.detail(ctx, conv)
}

func (cs *conversationService) DeleteConversation(ctx context.Context, convID uuid.UUID) error {
  conv, err := cs.owned(ctx, nil, convID)
  if err != nil {
    return err
  }
  if err := cs.conversationRepo.FullDeleteByIDs(ctx, nil, []uuid.UUID{conv.ID}); err != nil {
    return fmt.Errorf("error deleting conversation: %w", err)
  }
  cs.log.Info("Conversation deleted", "conversationID", conv.ID)
  return nil
}

func (cs *conversationService) AddMessage(ctx context.Context, convID uuid.UUID, role, content string) (*types.Message, error) {
  conv, err := cs.owned(ctx, nil, convID)
  if err != nil {
    return nil, err
  }
  if vErr := validateMessageFields(&role, &content, true); vErr != nil {
    return nil, vErr
  }
  msg := &types.Message{ConversationID: conv.ID, Role: role, Content: content}
  if err := insertMessage(ctx, cs.db, cs.conversationRepo, cs.messageRepo, msg); err != nil {
    return nil, fmt.Errorf("error adding message: %w", err)
  }
  return msg, nil
}

func (cs *conversationService) ListConversationMessages(ctx context.Context, convID uuid.UUID) ([]*types.Message, error) {
  conv, err := cs.owned(ctx, nil, convID)
  if err != nil {
    return nil, err
  }
  msgs, err := cs.messageRepo.GetByConversationID(ctx, nil, conv.ID)
  if err != nil {
    return nil, fmt.Errorf("error listing messages: %w", err)
  }
  return msgs, nil
}

// owned resolves convID for the caller. Other owners' conversations are
// reported as ErrNotFound.
func (cs *conversationService) owned(ctx context.Context, tx *gorm.DB, convID uuid.UUID) (*types.Conversation, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    return nil, ErrUnauthenticated
  }
  conv, err := cs.conversationRepo.GetOwnedByID(ctx, tx, convID, userID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrNotFound
    }
    return nil, fmt.Errorf("error fetching conversation: %w", err)
  }
  return conv, nil
}

func (cs *conversationService) detail(ctx context.Context, conv *types.Conversation) (*ConversationDetail, error) {
  msgs, err := cs.messageRepo.GetByConversationID(ctx, nil, conv.ID)
  if err != nil {
    return nil, fmt.Errorf("error fetching conversation messages: %w", err)
  }
  if msgs == nil {
    msgs = []*types.Message{}
  }
  return &ConversationDetail{
    ID:           conv.ID,
    Title:        conv.Title,
    CreatedAt:    conv.CreatedAt,
    UpdatedAt:    conv.UpdatedAt,
    MessageCount: int64(len(msgs)),
    Messages:     msgs,
  }, nil
}
