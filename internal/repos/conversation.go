package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/cocoja/cocoja-backend/internal/logger"
    "github.com/cocoja/cocoja-backend/internal/types"
)

type ConversationRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, convs []*types.Conversation) ([]*types.Conversation, error)

    // READ
    GetOwnedByID(ctx context.Context, tx *gorm.DB, convID uuid.UUID, userID uuid.UUID) (*types.Conversation, error)
    GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error)

    // UPDATE
    UpdateTitle(ctx context.Context, tx *gorm.DB, conv *types.Conversation, title string) (*types.Conversation, error)
    Touch(ctx context.Context, tx *gorm.DB, convID uuid.UUID, at time.Time) error

    // FULL (HARD) DELETE
    FullDeleteByIDs(ctx context.Context, tx *gorm.DB, convIDs []uuid.UUID) error
}

type conversationRepo struct {
    db      *gorm.DB
    log     *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
    repoLog := baseLog.With("repo", "ConversationRepo")
    return &conversationRepo{db: db, log: repoLog}
}

//------------------------------------------------------------------------------
// CREATE
//------------------------------------------------------------------------------

func (cr *conversationRepo) Create(ctx context.Context, tx *gorm.DB, convs []*types.Conversation) ([]*types.Conversation, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    if len(convs) == 0 {
        cr.log.Debug("No conversations provided, returning empty slice")
        return []*types.Conversation{}, nil
    }
    now := time.Now().UTC()
    for _, c := range convs {
        if c.ID == uuid.Nil {
            c.ID = uuid.New()
        }
        if c.Title == "" {
            c.Title = types.DefaultConversationTitle
        }
        if c.CreatedAt.IsZero() {
            c.CreatedAt = now
        }
        if c.UpdatedAt.IsZero() {
            c.UpdatedAt = now
        }
    }
    if err := transaction.WithContext(ctx).Create(&convs).Error; err != nil {
        cr.log.Error("Failed to create conversations", "error", err)
        return nil, err
    }
    cr.log.Info("Successfully created conversations", "count", len(convs))
    return convs, nil
}

//------------------------------------------------------------------------------
// READ
//------------------------------------------------------------------------------

// GetOwnedByID returns gorm.ErrRecordNotFound when the conversation is missing
// or belongs to someone else.
func (cr *conversationRepo) GetOwnedByID(ctx context.Context, tx *gorm.DB, convID uuid.UUID, userID uuid.UUID) (*types.Conversation, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    var conv types.Conversation
    if err := transaction.WithContext(ctx).
        Where("id = ? AND user_id = ?", convID, userID).
        First(&conv).Error; err != nil {
        cr.log.Debug("Conversation lookup failed", "conversationID", convID, "userID", userID, "error", err)
        return nil, err
    }
    return &conv, nil
}

func (cr *conversationRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Conversation, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    var results []*types.Conversation
    if err := transaction.WithContext(ctx).
        Where("user_id = ?", userID).
        Order("updated_at DESC").
        Find(&results).Error; err != nil {
        cr.log.Error("Failed to fetch conversations by user", "userID", userID, "error", err)
        return nil, err
    }
    cr.log.Debug("Fetched conversations by user", "userID", userID, "count", len(results))
    return results, nil
}

//------------------------------------------------------------------------------
// UPDATE
//------------------------------------------------------------------------------

func (cr *conversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, conv *types.Conversation, title string) (*types.Conversation, error) {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    now := time.Now().UTC()
    if err := transaction.WithContext(ctx).
        Model(&types.Conversation{}).
        Where("id = ?", conv.ID).
        Updates(map[string]interface{}{"title": title, "updated_at": now}).Error; err != nil {
        cr.log.Error("Failed to update conversation title", "conversationID", conv.ID, "error", err)
        return nil, err
    }
    conv.Title = title
    conv.UpdatedAt = now
    return conv, nil
}

func (cr *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, convID uuid.UUID, at time.Time) error {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    if err := transaction.WithContext(ctx).
        Model(&types.Conversation{}).
        Where("id = ?", convID).
        Update("updated_at", at.UTC()).Error; err != nil {
        cr.log.Error("Failed to touch conversation", "conversationID", convID, "error", err)
        return err
    }
    return nil
}

//------------------------------------------------------------------------------
// FULL (HARD) DELETE
//------------------------------------------------------------------------------

// FullDeleteByIDs removes the conversations and their messages. Children are
// deleted explicitly so the cascade holds even where FK enforcement is off.
func (cr *conversationRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, convIDs []uuid.UUID) error {
    transaction := tx
    if transaction == nil {
        transaction = cr.db
    }
    if len(convIDs) == 0 {
        return nil
    }
    return transaction.WithContext(ctx).Transaction(func(inner *gorm.DB) error {
        if err := inner.Where("conversation_id IN ?", convIDs).Delete(&types.Message{}).Error; err != nil {
            cr.log.Error("Failed to delete messages of conversations", "error", err)
            return err
        }
        if err := inner.Where("id IN ?", convIDs).Delete(&types.Conversation{}).Error; err != nil {
            cr.log.Error("Failed to delete conversations", "error", err)
            return err
        }
        cr.log.Info("Successfully deleted conversations", "count", len(convIDs))
        return nil
    })
}
