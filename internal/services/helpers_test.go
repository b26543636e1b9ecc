package services

import (
  "context"
  "sync"
  "testing"

  "github.com/stretchr/testify/require"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/db"
  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
  t.Helper()
  svc, err := db.NewSQLiteService(logger.Nop(), ":memory:")
  require.NoError(t, err)
  require.NoError(t, svc.AutoMigrateAll())
  t.Cleanup(func() { svc.Close() })
  return svc.DB()
}

func asUser(user *types.User) context.Context {
  return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
    UserID:   user.ID,
    Username: user.Username,
    Email:    user.Email,
  })
}

type recordedCall struct {
  input   string
  history []HistoryEntry
}

// stubGenerator answers with a fixed reply (or err) and records its calls.
type stubGenerator struct {
  mu     sync.Mutex
  reply  string
  err    error
  calls  []recordedCall
}

func (sg *stubGenerator) Generate(ctx context.Context, userInput string, history []HistoryEntry) (string, error) {
  sg.mu.Lock()
  defer sg.mu.Unlock()
  sg.calls = append(sg.calls, recordedCall{input: userInput, history: history})
  if sg.err != nil {
    return "", sg.err
  }
  return sg.reply, nil
}

type testRepos struct {
  conversations repos.ConversationRepo
  messages      repos.MessageRepo
  users         repos.UserRepo
  tokens        repos.UserTokenRepo
}

func newTestRepos(gdb *gorm.DB) testRepos {
  return testRepos{
    conversations: repos.NewConversationRepo(gdb, logger.Nop()),
    messages:      repos.NewMessageRepo(gdb, logger.Nop()),
    users:         repos.NewUserRepo(gdb, logger.Nop()),
    tokens:        repos.NewUserTokenRepo(gdb, logger.Nop()),
  }
}

func seedUserWith(t *testing.T, r testRepos, username string) *types.User {
  t.Helper()
  users, err := r.users.Create(context.Background(), nil, []*types.User{{
    Username: username,
    Email:    username + "@example.com",
    Password: "hash",
  }})
  require.NoError(t, err)
  return users[0]
}
