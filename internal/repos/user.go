package repos

import (
    "context"
    "time"

    "github.com/google/uuid"
    "gorm.io/gorm"

    "github.com/cocoja/cocoja-backend/internal/logger"
    "github.com/cocoja/cocoja-backend/internal/types"
)

type UserRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error)

    // READ
    GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error)
    GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.User, error)
    GetByEmailInsensitive(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
    UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error)
    EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error)
}

type userRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
    repoLog := baseLog.With("repo", "UserRepo")
    return &userRepo{db: db, log: repoLog}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, users []*types.User) ([]*types.User, error) {
    ur.log.Info("Starting Create Users now...")

    // 1) Check transaction
    transaction := tx
    if transaction == nil {
        transaction = ur.db
        ur.log.Debug("Transaction is nil, using ur.db instead")
    }

    // 2) Check if empty
    if len(users) == 0 {
        ur.log.Debug("Users array is empty, returning empty slice", "count", 0)
        return []*types.User{}, nil
    }

    // 3) Create
    now := time.Now().UTC()
    for _, u := range users {
        if u.ID == uuid.Nil {
            u.ID = uuid.New()
        }
        if u.CreatedAt.IsZero() {
            u.CreatedAt = now
        }
        if u.UpdatedAt.IsZero() {
            u.UpdatedAt = now
        }
    }
    if err := transaction.WithContext(ctx).Create(&users).Error; err != nil {
        ur.log.Error("Failed to create users", "error", err)
        return nil, err
    }
    ur.log.Info("Successfully created users", "count", len(users))
    return users, nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

func (ur *userRepo) GetByIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.User, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var results []*types.User
    if len(userIDs) == 0 {
        ur.log.Debug("No userIDs provided, returning empty slice")
        return results, nil
    }
    if err := transaction.WithContext(ctx).
        Where("id IN ?", userIDs).
        Find(&results).Error; err != nil {
        ur.log.Error("Failed to fetch users by IDs", "error", err)
        return nil, err
    }
    ur.log.Debug("Successfully fetched users by IDs", "count", len(results))
    return results, nil
}

// GetByUsername matches case-sensitively. Returns gorm.ErrRecordNotFound when absent.
func (ur *userRepo) GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*types.User, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var user types.User
    if err := transaction.WithContext(ctx).
        Where("username = ?", username).
        First(&user).Error; err != nil {
        return nil, err
    }
    return &user, nil
}

// GetByEmailInsensitive returns gorm.ErrRecordNotFound when no email matches.
func (ur *userRepo) GetByEmailInsensitive(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var user types.User
    if err := transaction.WithContext(ctx).
        Where("LOWER(email) = LOWER(?)", email).
        First(&user).Error; err != nil {
        return nil, err
    }
    return &user, nil
}

func (ur *userRepo) UsernameExists(ctx context.Context, tx *gorm.DB, username string) (bool, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.User{}).
        Where("username = ?", username).
        Count(&count).Error; err != nil {
        ur.log.Error("Failed to count users by username", "error", err)
        return false, err
    }
    exists := count > 0
    ur.log.Debug("UsernameExists check complete", "username", username, "exists", exists)
    return exists, nil
}

func (ur *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
    transaction := tx
    if transaction == nil {
        transaction = ur.db
    }
    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.User{}).
        Where("LOWER(email) = LOWER(?)", email).
        Count(&count).Error; err != nil {
        ur.log.Error("Failed to count users by email", "error", err)
        return false, err
    }
    exists := count > 0
    ur.log.Debug("EmailExists check complete", "email", email, "exists", exists)
    return exists, nil
}
