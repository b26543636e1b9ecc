package utils

import (
  "context"
  "fmt"

  "golang.org/x/crypto/bcrypt"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/normalization"
  "github.com/cocoja/cocoja-backend/internal/types"
)

func HashPassword(ctx context.Context, log *logger.Logger, user *types.User) error {
  hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
  if err != nil {
    log.Warn("Failure to hash password for user. Returning error", "error", err)
    return fmt.Errorf("failed to hash password for user: %w", err)
  }
  user.Password = string(hashedPassword)
  return nil
}

func CheckPassword(user *types.User, password string) bool {
  if user == nil || user.Password == "" {
    return false
  }
  return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

// NormalizeUserFields trims identity fields. Passwords are left untouched.
func NormalizeUserFields(ctx context.Context, user *types.User) {
  user.Username = normalization.ParseInputString(user.Username)
  user.Email = normalization.ParseInputString(user.Email)
}
