package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/cocoja/cocoja-backend/internal/logger"
    "github.com/cocoja/cocoja-backend/internal/types"
)

type UserTokenRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) ([]*types.UserToken, error)

    // READ
    GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error)
    GetByAccessTokens(ctx context.Context, tx *gorm.DB, accessTokens []string) ([]*types.UserToken, error)
    GetByRefreshTokens(ctx context.Context, tx *gorm.DB, refreshTokens []string) ([]*types.UserToken, error)

    // FULL (HARD) DELETE
    FullDeleteByTokens(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) error
    FullDeleteExpiredByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID, now time.Time) error
}

type userTokenRepo struct {
    db      *gorm.DB
    log     *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
    repoLog := baseLog.With("repo", "UserTokenRepo")
    return &userTokenRepo{db: db, log: repoLog}
}

//------------------------------------------------------------------------------
// CREATE
//------------------------------------------------------------------------------

func (utr *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) ([]*types.UserToken, error) {
    utr.log.Info("Starting Create UserTokens now...")

    // 1) Transaction check
    transaction := tx
    if transaction == nil {
        transaction = utr.db
        utr.log.Debug("Transaction is nil, using utr.db")
    }

    // 2) If no userTokens, skip
    if len(userTokens) == 0 {
        utr.log.Debug("No userTokens provided, returning empty slice")
        return []*types.UserToken{}, nil
    }

    // 3) Create
    now := time.Now().UTC()
    for _, t := range userTokens {
        if t.ID == uuid.Nil {
            t.ID = uuid.New()
        }
        if t.CreatedAt.IsZero() {
            t.CreatedAt = now
        }
        if t.UpdatedAt.IsZero() {
            t.UpdatedAt = now
        }
        t.ExpiresAt = t.ExpiresAt.UTC()
    }
    if err := transaction.WithContext(ctx).Create(&userTokens).Error; err != nil {
        utr.log.Error("Failed to create userTokens", "error", err)
        return nil, err
    }
    utr.log.Info("Successfully created userTokens", "count", len(userTokens))
    return userTokens, nil
}

//------------------------------------------------------------------------------
// READ
//------------------------------------------------------------------------------

func (utr *userTokenRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error) {
    transaction := tx
    if transaction == nil {
        transaction = utr.db
    }
    var results []*types.UserToken
    if len(userIDs) == 0 {
        utr.log.Debug("No userIDs provided, returning empty slice")
        return results, nil
    }
    if err := transaction.WithContext(ctx).
        Where("user_id IN ?", userIDs).
        Find(&results).Error; err != nil {
        utr.log.Error("Failed to fetch userTokens by userIDs", "error", err)
        return nil, err
    }
    return results, nil
}

func (utr *userTokenRepo) GetByAccessTokens(ctx context.Context, tx *gorm.DB, accessTokens []string) ([]*types.UserToken, error) {
    transaction := tx
    if transaction == nil {
        transaction = utr.db
    }
    var results []*types.UserToken
    if len(accessTokens) == 0 {
        utr.log.Debug("No accessTokens provided, returning empty slice")
        return results, nil
    }
    if err := transaction.WithContext(ctx).
        Where("access_token IN ?", accessTokens).
        Find(&results).Error; err != nil {
        utr.log.Error("Failed to fetch userTokens by access tokens", "error", err)
        return nil, err
    }
    return results, nil
}

func (utr *userTokenRepo) GetByRefreshTokens(ctx context.Context, tx *gorm.DB, refreshTokens []string) ([]*types.UserToken, error) {
    transaction := tx
    if transaction == nil {
        transaction = utr.db
    }
    var results []*types.UserToken
    if len(refreshTokens) == 0 {
        utr.log.Debug("No refreshTokens provided, returning empty slice")
        return results, nil
    }
    if err := transaction.WithContext(ctx).
        Where("refresh_token IN ?", refreshTokens).
        Find(&results).Error; err != nil {
        utr.log.Error("Failed to fetch userTokens by refresh tokens", "error", err)
        return nil, err
    }
    return results, nil
}

//------------------------------------------------------------------------------
// FULL (HARD) DELETE
//------------------------------------------------------------------------------

func (utr *userTokenRepo) FullDeleteByTokens(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) error {
    transaction := tx
    if transaction == nil {
        transaction = utr.db
    }
    if len(userTokens) == 0 {
        utr.log.Debug("No userTokens provided, nothing to delete")
        return nil
    }
    var ids []uuid.UUID
    for _, t := range userTokens {
        if t != nil {
            ids = append(ids, t.ID)
        }
    }
    if len(ids) == 0 {
        return nil
    }
    if err := transaction.WithContext(ctx).
        Where("id IN ?", ids).
        Delete(&types.UserToken{}).Error; err != nil {
        utr.log.Error("Failed to delete userTokens", "error", err)
        return err
    }
    utr.log.Info("Successfully deleted userTokens", "count", len(ids))
    return nil
}

func (utr *userTokenRepo) FullDeleteExpiredByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID, now time.Time) error {
    transaction := tx
    if transaction == nil {
        transaction = utr.db
    }
    if len(userIDs) == 0 {
        return nil
    }
    if err := transaction.WithContext(ctx).
        Where("user_id IN ? AND expires_at < ?", userIDs, now.UTC()).
        Delete(&types.UserToken{}).Error; err != nil {
        utr.log.Error("Failed to delete expired userTokens", "error", err)
        return err
    }
    return nil
}
