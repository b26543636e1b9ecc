package utils

import (
  "context"
  "testing"

  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/types"
)

func TestHashAndCheckPassword(t *testing.T) {
  user := &types.User{Password: "s3cret-pass"}
  require.NoError(t, HashPassword(context.Background(), logger.Nop(), user))
  assert.NotEqual(t, "s3cret-pass", user.Password)

  assert.True(t, CheckPassword(user, "s3cret-pass"))
  assert.False(t, CheckPassword(user, "S3cret-pass"))
  assert.False(t, CheckPassword(nil, "s3cret-pass"))
  assert.False(t, CheckPassword(&types.User{}, ""))
}

func TestNormalizeUserFields(t *testing.T) {
  user := &types.User{Username: "  bob ", Email: " Bob@Example.com\n", Password: " keep "}
  NormalizeUserFields(context.Background(), user)
  assert.Equal(t, "bob", user.Username)
  assert.Equal(t, "Bob@Example.com", user.Email)
  assert.Equal(t, " keep ", user.Password)
}
