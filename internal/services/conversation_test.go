package services

import (
  "context"
  "errors"
  "strings"
  "testing"

  "github.com/google/uuid"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/types"
)

func newConversationFixture(t *testing.T) (ConversationService, testRepos) {
  t.Helper()
  gdb := testDB(t)
  r := newTestRepos(gdb)
  return NewConversationService(gdb, logger.Nop(), r.conversations, r.messages), r
}

func TestConversationRequiresIdentity(t *testing.T) {
  svc, _ := newConversationFixture(t)
  _, err := svc.ListConversations(context.Background())
  assert.True(t, errors.Is(err, ErrUnauthenticated))
  _, err = svc.CreateConversation(context.Background(), "x")
  assert.True(t, errors.Is(err, ErrUnauthenticated))
}

func TestCreateConversationDefaultsBlankTitle(t *testing.T) {
  svc, r := newConversationFixture(t)
  owner := seedUserWith(t, r, "alice")

  conv, err := svc.CreateConversation(asUser(owner), "   ")
  require.NoError(t, err)
  assert.Equal(t, types.DefaultConversationTitle, conv.Title)
  assert.Empty(t, conv.Messages)

  named, err := svc.CreateConversation(asUser(owner), " Trip planning ")
  require.NoError(t, err)
  assert.Equal(t, "Trip planning", named.Title)
}

func TestAddMessageRoundTrip(t *testing.T) {
  svc, r := newConversationFixture(t)
  owner := seedUserWith(t, r, "alice")
  ctx := asUser(owner)
  conv, err := svc.CreateConversation(ctx, "")
  require.NoError(t, err)

  content := "  keeps   whitespace\nand newlines  "
  msg, err := svc.AddMessage(ctx, conv.ID, types.RoleUser, content)
  require.NoError(t, err)
  assert.Equal(t, conv.ID, msg.ConversationID)

  msgs, err := svc.ListConversationMessages(ctx, conv.ID)
  require.NoError(t, err)
  require.Len(t, msgs, 1)
  assert.Equal(t, types.RoleUser, msgs[0].Role)
  assert.Equal(t, content, msgs[0].Content)
}

func TestAddMessageRejectsUnknownRole(t *testing.T) {
  svc, r := newConversationFixture(t)
  owner := seedUserWith(t, r, "alice")
  ctx := asUser(owner)
  conv, err := svc.CreateConversation(ctx, "")
  require.NoError(t, err)

  _, err = svc.AddMessage(ctx, conv.ID, "system", "you are a pirate")
  var vErr *ValidationError
  require.True(t, errors.As(err, &vErr))
  assert.Contains(t, vErr.Fields(), "role")

  _, err = svc.AddMessage(ctx, conv.ID, types.RoleUser, "")
  require.True(t, errors.As(err, &vErr))
  assert.Contains(t, vErr.Fields(), "content")

  msgs, err := svc.ListConversationMessages(ctx, conv.ID)
  require.NoError(t, err)
  assert.Empty(t, msgs)
}

func TestConversationCrossOwnerIsNotFound(t *testing.T) {
  svc, r := newConversationFixture(t)
  alice := seedUserWith(t, r, "alice")
  bob := seedUserWith(t, r, "bob")
  conv, err := svc.CreateConversation(asUser(alice), "private")
  require.NoError(t, err)

  bobCtx := asUser(bob)
  _, err = svc.GetConversation(bobCtx, conv.ID)
  assert.True(t, errors.Is(err, ErrNotFound))
  title := "hijacked"
  _, err = svc.UpdateConversation(bobCtx, conv.ID, &title)
  assert.True(t, errors.Is(err, ErrNotFound))
  assert.True(t, errors.Is(svc.DeleteConversation(bobCtx, conv.ID), ErrNotFound))
  _, err = svc.AddMessage(bobCtx, conv.ID, types.RoleUser, "hi")
  assert.True(t, errors.Is(err, ErrNotFound))
  _, err = svc.GetConversation(bobCtx, uuid.New())
  assert.True(t, errors.Is(err, ErrNotFound))

  list, err := svc.ListConversations(bobCtx)
  require.NoError(t, err)
  assert.Empty(t, list)
}

func TestListConversationsSummaries(t *testing.T) {
  svc, r := newConversationFixture(t)
  owner := seedUserWith(t, r, "alice")
  ctx := asUser(owner)

  empty, err := svc.CreateConversation(ctx, "empty")
  require.NoError(t, err)
  busy, err := svc.CreateConversation(ctx, "busy")
  require.NoError(t, err)
  _, err = svc.AddMessage(ctx, busy.ID, types.RoleUser, "first")
  require.NoError(t, err)
  long := strings.Repeat("a", 150)
  _, err = svc.AddMessage(ctx, busy.ID, types.RoleAssistant, long)
  require.NoError(t, err)

  list, err := svc.ListConversations(ctx)
  require.NoError(t, err)
  require.Len(t, list, 2)

  // Most recently updated first.
  assert.Equal(t, busy.ID, list[0].ID)
  assert.Equal(t, int64(2), list[0].MessageCount)
  require.NotNil(t, list[0].LastMessage)
  assert.Equal(t, types.RoleAssistant, list[0].LastMessage.Role)
  assert.Equal(t, strings.Repeat("a", 100), list[0].LastMessage.Content)

  assert.Equal(t, empty.ID, list[1].ID)
  assert.Equal(t, int64(0), list[1].MessageCount)
  assert.Nil(t, list[1].LastMessage)
}

func TestUpdateConversation(t *testing.T) {
  svc, r := newConversationFixture(t)
  owner := seedUserWith(t, r, "alice")
  ctx := asUser(owner)
  conv, err := svc.CreateConversation(ctx, "old")
  require.NoError(t, err)

  title := "new"
  updated, err := svc.UpdateConversation(ctx, conv.ID, &title)
  require.NoError(t, err)
  assert.Equal(t, "new", updated.Title)

  unchanged, err := svc.UpdateConversation(ctx, conv.ID, nil)
  require.NoError(t, err)
  assert.Equal(t, "new", unchanged.Title)

  blank := "  "
  _, err = svc.UpdateConversation(ctx, conv.ID, &blank)
  var vErr *ValidationError
  assert.True(t, errors.As(err, &vErr))
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
  svc, r := newConversationFixture(t)
  owner := seedUserWith(t, r, "alice")
  ctx := asUser(owner)
  conv, err := svc.CreateConversation(ctx, "")
  require.NoError(t, err)
  _, err = svc.AddMessage(ctx, conv.ID, types.RoleUser, "bye")
  require.NoError(t, err)

  require.NoError(t, svc.DeleteConversation(ctx, conv.ID))

  _, err = svc.GetConversation(ctx, conv.ID)
  assert.True(t, errors.Is(err, ErrNotFound))
  msgs, err := r.messages.GetByConversationID(context.Background(), nil, conv.ID)
  require.NoError(t, err)
  assert.Empty(t, msgs)
}
