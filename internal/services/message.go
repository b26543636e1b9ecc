package services

import (
  "context"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/types"
)

type MessageService interface {
  ListMessages(ctx context.Context, convID *uuid.UUID) ([]*types.Message, error)
  CreateMessage(ctx context.Context, convID uuid.UUID, role, content string) (*types.Message, error)
  GetMessage(ctx context.Context, msgID uuid.UUID) (*types.Message, error)
  UpdateMessage(ctx context.Context, msgID uuid.UUID, role, content *string) (*types.Message, error)
  DeleteMessage(ctx context.Context, msgID uuid.UUID) error
}

type messageService struct {
  db                *gorm.DB
  log               *logger.Logger
  conversationRepo  repos.ConversationRepo
  messageRepo       repos.MessageRepo
}

func NewMessageService(
  db                *gorm.DB,
  log               *logger.Logger,
  conversationRepo  repos.ConversationRepo,
  messageRepo       repos.MessageRepo,
) MessageService {
  serviceLog := log.With("service", "MessageService")
  return &messageService{
    db:               db,
    log:              serviceLog,
    conversationRepo: conversationRepo,
    messageRepo:      messageRepo,
  }
}

func (ms *messageService) ListMessages(ctx context.Context, convID *uuid.UUID) ([]*types.Message, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    return nil, ErrUnauthenticated
  }
  msgs, err := ms.messageRepo.GetOwnedByUserID(ctx, nil, userID, convID)
  if err != nil {
    return nil, fmt.Errorf("error listing messages: %w", err)
  }
  if msgs == nil {
    msgs = []*types.Message{}
  }
  return msgs, nil
}

// CreateMessage reports a conversation the caller does not own as a field
// error on "conversation", the same way an unknown id is reported.
func (ms *messageService) CreateMessage(ctx context.Context, convID uuid.UUID, role, content string) (*types.Message, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    return nil, ErrUnauthenticated
  }
  vErr := &ValidationError{}
  if convID == uuid.Nil {
    vErr.Add("conversation", "This field is required.")
  } else if _, err := ms.conversationRepo.GetOwnedByID(ctx, nil, convID, userID); err != nil {
    if !errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, fmt.Errorf("error fetching conversation: %w", err)
    }
    vErr.Add("conversation", fmt.Sprintf("Invalid pk %q - object does not exist.", convID.String()))
  }
  if fieldErr := validateMessageFields(&role, &content, true); fieldErr != nil {
    vErr.Errors = append(vErr.Errors, fieldErr.Errors...)
  }
  if vErr.HasErrors() {
    return nil, vErr
  }
  msg := &types.Message{ConversationID: convID, Role: role, Content: content}
  if err := insertMessage(ctx, ms.db, ms.conversationRepo, ms.messageRepo, msg); err != nil {
    return nil, fmt.Errorf("error creating message: %w", err)
  }
  return msg, nil
}

func (ms *messageService) GetMessage(ctx context.Context, msgID uuid.UUID) (*types.Message, error) {
  return ms.owned(ctx, msgID)
}

// UpdateMessage applies the non-nil fields.
func (ms *messageService) UpdateMessage(ctx context.Context, msgID uuid.UUID, role, content *string) (*types.Message, error) {
  msg, err := ms.owned(ctx, msgID)
  if err != nil {
    return nil, err
  }
  if vErr := validateMessageFields(role, content, false); vErr != nil {
    return nil, vErr
  }
  if role != nil {
    msg.Role = *role
  }
  if content != nil {
    msg.Content = *content
  }
  if err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := ms.messageRepo.Update(ctx, tx, msg); err != nil {
      return err
    }
    return ms.conversationRepo.Touch(ctx, tx, msg.ConversationID, time.Now())
  }); err != nil {
    return nil, fmt.Errorf("error updating message: %w", err)
  }
  return msg, nil
}

func (ms *messageService) DeleteMessage(ctx context.Context, msgID uuid.UUID) error {
  msg, err := ms.owned(ctx, msgID)
  if err != nil {
    return err
  }
  if err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := ms.messageRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{msg.ID}); err != nil {
      return err
    }
    return ms.conversationRepo.Touch(ctx, tx, msg.ConversationID, time.Now())
  }); err != nil {
    return fmt.Errorf("error deleting message: %w", err)
  }
  return nil
}

func (ms *messageService) owned(ctx context.Context, msgID uuid.UUID) (*types.Message, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    return nil, ErrUnauthenticated
  }
  msg, err := ms.messageRepo.GetOwnedByID(ctx, nil, msgID, userID)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrNotFound
    }
    return nil, fmt.Errorf("error fetching message: %w", err)
  }
  return msg, nil
}

//------------------------------------------------------------------------------
// Shared helpers
//------------------------------------------------------------------------------

// validateMessageFields checks role and content. With required set a nil or
// empty field is an error; otherwise only provided fields are checked.
func validateMessageFields(role, content *string, required bool) *ValidationError {
  vErr := &ValidationError{}
  switch {
  case role == nil || *role == "":
    if required || role != nil {
      vErr.Add("role", "This field is required.")
    }
  case !types.ValidRole(*role):
    vErr.Add("role", fmt.Sprintf("%q is not a valid choice.", *role))
  }
  if content == nil || *content == "" {
    if required || content != nil {
      vErr.Add("content", "This field is required.")
    }
  }
  if vErr.HasErrors() {
    return vErr
  }
  return nil
}

func insertMessage(ctx context.Context, db *gorm.DB, conversationRepo repos.ConversationRepo, messageRepo repos.MessageRepo, msg *types.Message) error {
  return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := messageRepo.Create(ctx, tx, []*types.Message{msg}); err != nil {
      return err
    }
    return conversationRepo.Touch(ctx, tx, msg.ConversationID, time.Now())
  })
}
