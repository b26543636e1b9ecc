package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/cocoja/cocoja-backend/internal/logger"
    "github.com/cocoja/cocoja-backend/internal/types"
)

type MessageRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error)

    // READ
    GetOwnedByID(ctx context.Context, tx *gorm.DB, msgID uuid.UUID, userID uuid.UUID) (*types.Message, error)
    GetByConversationID(ctx context.Context, tx *gorm.DB, convID uuid.UUID) ([]*types.Message, error)
    GetRecentByConversationID(ctx context.Context, tx *gorm.DB, convID uuid.UUID, limit int) ([]*types.Message, error)
    GetOwnedByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, convID *uuid.UUID) ([]*types.Message, error)
    CountByConversationIDs(ctx context.Context, tx *gorm.DB, convIDs []uuid.UUID) (map[uuid.UUID]int64, error)
    GetLatestByConversationIDs(ctx context.Context, tx *gorm.DB, convIDs []uuid.UUID) (map[uuid.UUID]*types.Message, error)

    // UPDATE
    Update(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error)

    // FULL (HARD) DELETE
    FullDeleteByIDs(ctx context.Context, tx *gorm.DB, msgIDs []uuid.UUID) error
}

type messageRepo struct {
    db      *gorm.DB
    log     *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
    repoLog := baseLog.With("repo", "MessageRepo")
    return &messageRepo{db: db, log: repoLog}
}

//------------------------------------------------------------------------------
// CREATE
//------------------------------------------------------------------------------

// Create inserts msgs in slice order. Unset timestamps are stamped one
// microsecond apart so creation order survives coarse clocks.
func (mr *messageRepo) Create(ctx context.Context, tx *gorm.DB, msgs []*types.Message) ([]*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    if len(msgs) == 0 {
        mr.log.Debug("No messages provided, returning empty slice")
        return []*types.Message{}, nil
    }
    base := time.Now().UTC().Truncate(time.Microsecond)
    for i, m := range msgs {
        if m.ID == uuid.Nil {
            m.ID = uuid.New()
        }
        if m.CreatedAt.IsZero() {
            m.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
        }
        m.CreatedAt = m.CreatedAt.UTC()
    }
    if err := transaction.WithContext(ctx).Create(&msgs).Error; err != nil {
        mr.log.Error("Failed to create messages", "error", err)
        return nil, err
    }
    mr.log.Info("Successfully created messages", "count", len(msgs))
    return msgs, nil
}

//------------------------------------------------------------------------------
// READ
//------------------------------------------------------------------------------

func (mr *messageRepo) ownedScope(transaction *gorm.DB, userID uuid.UUID) *gorm.DB {
    return transaction.
        Model(&types.Message{}).
        Select("message.*").
        Joins("JOIN conversation ON conversation.id = message.conversation_id").
        Where("conversation.user_id = ?", userID)
}

// GetOwnedByID returns gorm.ErrRecordNotFound unless the parent conversation
// belongs to userID.
func (mr *messageRepo) GetOwnedByID(ctx context.Context, tx *gorm.DB, msgID uuid.UUID, userID uuid.UUID) (*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    var msg types.Message
    if err := mr.ownedScope(transaction.WithContext(ctx), userID).
        Where("message.id = ?", msgID).
        Take(&msg).Error; err != nil {
        mr.log.Debug("Message lookup failed", "messageID", msgID, "userID", userID, "error", err)
        return nil, err
    }
    return &msg, nil
}

func (mr *messageRepo) GetByConversationID(ctx context.Context, tx *gorm.DB, convID uuid.UUID) ([]*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    var results []*types.Message
    if err := transaction.WithContext(ctx).
        Where("conversation_id = ?", convID).
        Order("created_at ASC").
        Find(&results).Error; err != nil {
        mr.log.Error("Failed to fetch messages by conversation", "conversationID", convID, "error", err)
        return nil, err
    }
    return results, nil
}

// GetRecentByConversationID returns the newest limit messages, oldest first.
func (mr *messageRepo) GetRecentByConversationID(ctx context.Context, tx *gorm.DB, convID uuid.UUID, limit int) ([]*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    var results []*types.Message
    if limit <= 0 {
        return results, nil
    }
    if err := transaction.WithContext(ctx).
        Where("conversation_id = ?", convID).
        Order("created_at DESC").
        Limit(limit).
        Find(&results).Error; err != nil {
        mr.log.Error("Failed to fetch recent messages by conversation", "conversationID", convID, "error", err)
        return nil, err
    }
    for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
        results[i], results[j] = results[j], results[i]
    }
    return results, nil
}

func (mr *messageRepo) GetOwnedByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID, convID *uuid.UUID) ([]*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    query := mr.ownedScope(transaction.WithContext(ctx), userID)
    if convID != nil {
        query = query.Where("message.conversation_id = ?", *convID)
    }
    var results []*types.Message
    if err := query.
        Order("message.created_at ASC").
        Find(&results).Error; err != nil {
        mr.log.Error("Failed to fetch messages owned by user", "userID", userID, "error", err)
        return nil, err
    }
    return results, nil
}

func (mr *messageRepo) CountByConversationIDs(ctx context.Context, tx *gorm.DB, convIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    counts := make(map[uuid.UUID]int64, len(convIDs))
    if len(convIDs) == 0 {
        return counts, nil
    }
    var rows []struct {
        ConversationID  uuid.UUID
        Count           int64
    }
    if err := transaction.WithContext(ctx).
        Model(&types.Message{}).
        Select("conversation_id, COUNT(*) AS count").
        Where("conversation_id IN ?", convIDs).
        Group("conversation_id").
        Scan(&rows).Error; err != nil {
        mr.log.Error("Failed to count messages by conversation", "error", err)
        return nil, err
    }
    for _, r := range rows {
        counts[r.ConversationID] = r.Count
    }
    return counts, nil
}

func (mr *messageRepo) GetLatestByConversationIDs(ctx context.Context, tx *gorm.DB, convIDs []uuid.UUID) (map[uuid.UUID]*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    latest := make(map[uuid.UUID]*types.Message, len(convIDs))
    if len(convIDs) == 0 {
        return latest, nil
    }
    var results []*types.Message
    if err := transaction.WithContext(ctx).
        Where("conversation_id IN ?", convIDs).
        Where("created_at = (SELECT MAX(m2.created_at) FROM message m2 WHERE m2.conversation_id = message.conversation_id)").
        Find(&results).Error; err != nil {
        mr.log.Error("Failed to fetch latest messages by conversation", "error", err)
        return nil, err
    }
    for _, m := range results {
        if _, ok := latest[m.ConversationID]; !ok {
            latest[m.ConversationID] = m
        }
    }
    return latest, nil
}

//------------------------------------------------------------------------------
// UPDATE
//------------------------------------------------------------------------------

func (mr *messageRepo) Update(ctx context.Context, tx *gorm.DB, msg *types.Message) (*types.Message, error) {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    if err := transaction.WithContext(ctx).
        Model(&types.Message{}).
        Where("id = ?", msg.ID).
        Updates(map[string]interface{}{"role": msg.Role, "content": msg.Content}).Error; err != nil {
        mr.log.Error("Failed to update message", "messageID", msg.ID, "error", err)
        return nil, err
    }
    return msg, nil
}

//------------------------------------------------------------------------------
// FULL (HARD) DELETE
//------------------------------------------------------------------------------

func (mr *messageRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, msgIDs []uuid.UUID) error {
    transaction := tx
    if transaction == nil {
        transaction = mr.db
    }
    if len(msgIDs) == 0 {
        return nil
    }
    if err := transaction.WithContext(ctx).
        Where("id IN ?", msgIDs).
        Delete(&types.Message{}).Error; err != nil {
        mr.log.Error("Failed to delete messages", "error", err)
        return err
    }
    return nil
}
