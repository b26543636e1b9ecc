package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/types"
)

type MeService interface {
  GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error)
}

type meService struct {
  db          *gorm.DB
  log         *logger.Logger
  userRepo    repos.UserRepo
}

func NewMeService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) MeService {
  serviceLog := log.With("service", "MeService")
  return &meService{
    db:       db,
    log:      serviceLog,
    userRepo: userRepo,
  }
}

func (ms *meService) GetMe(ctx context.Context, tx *gorm.DB) (*types.User, error) {
  userID, ok := requestdata.Identity(ctx)
  if !ok {
    ms.log.Warn("User ID not set in Request Data.")
    return nil, ErrUnauthenticated
  }
  foundUsers, fErr := ms.userRepo.GetByIDs(ctx, tx, []uuid.UUID{userID})
  if fErr != nil {
    ms.log.Warn("Error fetching user in GetMe", "error", fErr)
    return nil, fmt.Errorf("error fetching user: %w", fErr)
  }
  if len(foundUsers) == 0 {
    return nil, fmt.Errorf("%w: user does not exist", ErrUnauthenticated)
  }
  return foundUsers[0], nil
}
