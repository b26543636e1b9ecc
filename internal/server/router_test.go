package server

import (
  "bytes"
  "encoding/json"
  "net/http"
  "net/http/httptest"
  "strings"
  "testing"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/stretchr/testify/assert"
  "github.com/stretchr/testify/require"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/cache"
  "github.com/cocoja/cocoja-backend/internal/db"
  "github.com/cocoja/cocoja-backend/internal/handlers"
  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/middleware"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/services"
  "github.com/cocoja/cocoja-backend/internal/types"
)

func init() {
  gin.SetMode(gin.TestMode)
}

type testServer struct {
  engine *gin.Engine
  db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
  t.Helper()
  log := logger.Nop()
  dbService, err := db.NewSQLiteService(log, ":memory:")
  require.NoError(t, err)
  require.NoError(t, dbService.AutoMigrateAll())
  t.Cleanup(func() { dbService.Close() })
  gdb := dbService.DB()

  userRepo := repos.NewUserRepo(gdb, log)
  userTokenRepo := repos.NewUserTokenRepo(gdb, log)
  conversationRepo := repos.NewConversationRepo(gdb, log)
  messageRepo := repos.NewMessageRepo(gdb, log)

  authService := services.NewAuthService(gdb, log, userRepo, userTokenRepo, cache.NopTokenCache{}, "test-secret", 15*time.Minute, time.Hour)
  meService := services.NewMeService(gdb, log, userRepo)
  chatService := services.NewChatService(gdb, log, conversationRepo, messageRepo, services.NewKeywordGenerator(log), services.DefaultHistoryLimit)
  conversationService := services.NewConversationService(gdb, log, conversationRepo, messageRepo)
  messageService := services.NewMessageService(gdb, log, conversationRepo, messageRepo)

  engine := NewRouter(RouterConfig{
    Log:                 log,
    AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
    AuthHandler:         handlers.NewAuthHandler(authService, meService, false),
    ChatHandler:         handlers.NewChatHandler(chatService),
    ConversationHandler: handlers.NewConversationHandler(conversationService),
    MessageHandler:      handlers.NewMessageHandler(messageService),
  })
  return &testServer{engine: engine, db: gdb}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
  t.Helper()
  var reader *bytes.Reader
  if body != nil {
    raw, err := json.Marshal(body)
    require.NoError(t, err)
    reader = bytes.NewReader(raw)
  } else {
    reader = bytes.NewReader(nil)
  }
  req := httptest.NewRequest(method, path, reader)
  req.Header.Set("Content-Type", "application/json")
  if token != "" {
    req.Header.Set("Authorization", "Bearer "+token)
  }
  w := httptest.NewRecorder()
  ts.engine.ServeHTTP(w, req)
  return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
  t.Helper()
  require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

// signup registers and logs in username, returning the access token.
func (ts *testServer) signup(t *testing.T, username string) string {
  t.Helper()
  w := ts.do(t, http.MethodPost, "/api/auth/register/", "", gin.H{
    "username": username,
    "email":    username + "@example.com",
    "password": "password123",
  })
  require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
  w = ts.do(t, http.MethodPost, "/api/auth/login/", "", gin.H{"identifier": username, "password": "password123"})
  require.Equal(t, http.StatusOK, w.Code, w.Body.String())
  var res struct {
    AccessToken string `json:"access_token"`
  }
  decode(t, w, &res)
  require.NotEmpty(t, res.AccessToken)
  return res.AccessToken
}

func (ts *testServer) createConversation(t *testing.T, token, title string) string {
  t.Helper()
  w := ts.do(t, http.MethodPost, "/api/chat/conversations/", token, gin.H{"title": title})
  require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
  var conv struct {
    ID string `json:"id"`
  }
  decode(t, w, &conv)
  return conv.ID
}

func (ts *testServer) countMessages(t *testing.T) int64 {
  t.Helper()
  var n int64
  require.NoError(t, ts.db.Model(&types.Message{}).Count(&n).Error)
  return n
}

func TestHealthz(t *testing.T) {
  ts := newTestServer(t)
  w := ts.do(t, http.MethodGet, "/healthz", "", nil)
  assert.Equal(t, http.StatusOK, w.Code)
  assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestAskAnswersGuestsAndUsers(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")

  for _, tok := range []string{"", token, "garbage-token"} {
    w := ts.do(t, http.MethodPost, "/api/chat/ask/", tok, gin.H{"question": "bonjour tout le monde"})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    var res map[string]string
    decode(t, w, &res)
    assert.Equal(t, "Bonjour ! Comment puis-je vous aider aujourd'hui ?", res["answer"])
  }

  w := ts.do(t, http.MethodPost, "/api/chat/ask/", "", gin.H{"question": "Quelle heure ?"})
  require.Equal(t, http.StatusOK, w.Code)
  assert.Contains(t, w.Body.String(), "Quelle heure ?")
}

func TestAskRejectsMissingQuestion(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")
  convID := ts.createConversation(t, token, "")

  for _, body := range []interface{}{nil, gin.H{}, gin.H{"question": "", "conversation_id": convID}} {
    w := ts.do(t, http.MethodPost, "/api/chat/ask/", token, body)
    assert.Equal(t, http.StatusBadRequest, w.Code)
    assert.Contains(t, w.Body.String(), `"error"`)
  }
  assert.Zero(t, ts.countMessages(t))
}

func TestAskPersistsPairForOwnedConversation(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")
  convID := ts.createConversation(t, token, "")

  w := ts.do(t, http.MethodPost, "/api/chat/ask/", token, gin.H{"question": "merci !", "conversation_id": convID})
  require.Equal(t, http.StatusOK, w.Code, w.Body.String())
  var res map[string]string
  decode(t, w, &res)

  w = ts.do(t, http.MethodGet, "/api/chat/conversations/"+convID+"/messages/", token, nil)
  require.Equal(t, http.StatusOK, w.Code)
  var msgs []types.Message
  decode(t, w, &msgs)
  require.Len(t, msgs, 2)
  assert.Equal(t, "user", msgs[0].Role)
  assert.Equal(t, "merci !", msgs[0].Content)
  assert.Equal(t, "assistant", msgs[1].Role)
  assert.Equal(t, res["answer"], msgs[1].Content)

  w = ts.do(t, http.MethodGet, "/api/chat/conversations/"+convID+"/", token, nil)
  require.Equal(t, http.StatusOK, w.Code)
  var detail struct {
    Title        string `json:"title"`
    MessageCount int    `json:"message_count"`
  }
  decode(t, w, &detail)
  assert.Equal(t, types.DefaultConversationTitle, detail.Title)
  assert.Equal(t, 2, detail.MessageCount)
}

func TestAskIgnoresNonStringConversationID(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")
  ts.createConversation(t, token, "")

  for _, tok := range []string{"", token} {
    for _, id := range []interface{}{5, 3.5, true, gin.H{"id": 1}, []int{1}, nil} {
      w := ts.do(t, http.MethodPost, "/api/chat/ask/", tok, gin.H{"question": "bonjour", "conversation_id": id})
      require.Equal(t, http.StatusOK, w.Code, "%v: %s", id, w.Body.String())
      var res map[string]string
      decode(t, w, &res)
      assert.Equal(t, "Bonjour ! Comment puis-je vous aider aujourd'hui ?", res["answer"])
    }
  }
  assert.Zero(t, ts.countMessages(t))
}

func TestAskAnswersWhitespaceQuestion(t *testing.T) {
  ts := newTestServer(t)
  w := ts.do(t, http.MethodPost, "/api/chat/ask/", "", gin.H{"question": "   "})
  require.Equal(t, http.StatusOK, w.Code, w.Body.String())
  var res map[string]string
  decode(t, w, &res)
  assert.NotEmpty(t, res["answer"])
}

func TestAskWithForeignConversationPersistsNothing(t *testing.T) {
  ts := newTestServer(t)
  alice := ts.signup(t, "alice")
  bob := ts.signup(t, "bob")
  convID := ts.createConversation(t, alice, "")

  for _, id := range []string{convID, "00000000-0000-0000-0000-000000000000", "not-a-uuid"} {
    w := ts.do(t, http.MethodPost, "/api/chat/ask/", bob, gin.H{"question": "salut", "conversation_id": id})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
  }
  assert.Zero(t, ts.countMessages(t))
}

func TestAddMessageRoundTripAndRoleValidation(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")
  convID := ts.createConversation(t, token, "notes")

  w := ts.do(t, http.MethodPost, "/api/chat/conversations/"+convID+"/add_message/", token, gin.H{"role": "system", "content": "nope"})
  assert.Equal(t, http.StatusBadRequest, w.Code)
  assert.Contains(t, w.Body.String(), `"role"`)
  assert.Zero(t, ts.countMessages(t))

  w = ts.do(t, http.MethodPost, "/api/chat/conversations/"+convID+"/add_message/", token, gin.H{"role": "assistant", "content": "Réponse  exacte\n"})
  require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

  w = ts.do(t, http.MethodGet, "/api/chat/conversations/"+convID+"/messages/", token, nil)
  require.Equal(t, http.StatusOK, w.Code)
  var msgs []types.Message
  decode(t, w, &msgs)
  require.Len(t, msgs, 1)
  assert.Equal(t, "assistant", msgs[0].Role)
  assert.Equal(t, "Réponse  exacte\n", msgs[0].Content)
}

func TestCrossOwnerAccessIsNotFound(t *testing.T) {
  ts := newTestServer(t)
  alice := ts.signup(t, "alice")
  bob := ts.signup(t, "bob")
  convID := ts.createConversation(t, alice, "private")

  w := ts.do(t, http.MethodPost, "/api/chat/conversations/"+convID+"/add_message/", alice, gin.H{"role": "user", "content": "secret"})
  require.Equal(t, http.StatusCreated, w.Code)
  var msg struct {
    ID string `json:"id"`
  }
  decode(t, w, &msg)

  for _, tc := range []struct{ method, path string }{
    {http.MethodGet, "/api/chat/conversations/" + convID + "/"},
    {http.MethodDelete, "/api/chat/conversations/" + convID + "/"},
    {http.MethodGet, "/api/chat/conversations/" + convID + "/messages/"},
    {http.MethodGet, "/api/chat/messages/" + msg.ID + "/"},
    {http.MethodGet, "/api/chat/conversations/not-a-uuid/"},
  } {
    w := ts.do(t, tc.method, tc.path, bob, nil)
    assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
  }

  w = ts.do(t, http.MethodGet, "/api/chat/messages/", bob, nil)
  require.Equal(t, http.StatusOK, w.Code)
  assert.JSONEq(t, `[]`, w.Body.String())
}

func TestConversationCRUD(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")

  w := ts.do(t, http.MethodGet, "/api/chat/conversations/", "", nil)
  assert.Equal(t, http.StatusUnauthorized, w.Code)

  w = ts.do(t, http.MethodPost, "/api/chat/conversations/", token, nil)
  require.Equal(t, http.StatusCreated, w.Code)
  var conv struct {
    ID    string `json:"id"`
    Title string `json:"title"`
  }
  decode(t, w, &conv)
  assert.Equal(t, types.DefaultConversationTitle, conv.Title)

  w = ts.do(t, http.MethodPut, "/api/chat/conversations/"+conv.ID+"/", token, gin.H{})
  assert.Equal(t, http.StatusBadRequest, w.Code)
  w = ts.do(t, http.MethodPatch, "/api/chat/conversations/"+conv.ID+"/", token, gin.H{"title": "Renamed"})
  require.Equal(t, http.StatusOK, w.Code)
  assert.Contains(t, w.Body.String(), "Renamed")

  long := strings.Repeat("x", 120)
  w = ts.do(t, http.MethodPost, "/api/chat/messages/", token, gin.H{"conversation": conv.ID, "role": "user", "content": long})
  require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

  w = ts.do(t, http.MethodGet, "/api/chat/conversations/", token, nil)
  require.Equal(t, http.StatusOK, w.Code)
  var list []services.ConversationSummary
  decode(t, w, &list)
  require.Len(t, list, 1)
  assert.Equal(t, int64(1), list[0].MessageCount)
  require.NotNil(t, list[0].LastMessage)
  assert.Len(t, list[0].LastMessage.Content, 100)

  w = ts.do(t, http.MethodDelete, "/api/chat/conversations/"+conv.ID+"/", token, nil)
  assert.Equal(t, http.StatusNoContent, w.Code)
  assert.Zero(t, ts.countMessages(t))
}

func TestMessageResource(t *testing.T) {
  ts := newTestServer(t)
  alice := ts.signup(t, "alice")
  bob := ts.signup(t, "bob")
  convID := ts.createConversation(t, alice, "")

  w := ts.do(t, http.MethodPost, "/api/chat/messages/", bob, gin.H{"conversation": convID, "role": "user", "content": "intruder"})
  assert.Equal(t, http.StatusBadRequest, w.Code)
  assert.Contains(t, w.Body.String(), `"conversation"`)

  w = ts.do(t, http.MethodPost, "/api/chat/messages/", alice, gin.H{"conversation": convID, "role": "user", "content": "draft"})
  require.Equal(t, http.StatusCreated, w.Code)
  var msg types.Message
  decode(t, w, &msg)

  w = ts.do(t, http.MethodGet, "/api/chat/messages/?conversation="+convID, alice, nil)
  require.Equal(t, http.StatusOK, w.Code)
  var msgs []types.Message
  decode(t, w, &msgs)
  assert.Len(t, msgs, 1)

  w = ts.do(t, http.MethodPut, "/api/chat/messages/"+msg.ID.String()+"/", alice, gin.H{"content": "only content"})
  assert.Equal(t, http.StatusBadRequest, w.Code)
  w = ts.do(t, http.MethodPatch, "/api/chat/messages/"+msg.ID.String()+"/", alice, gin.H{"content": "final"})
  require.Equal(t, http.StatusOK, w.Code)
  assert.Contains(t, w.Body.String(), "final")

  w = ts.do(t, http.MethodDelete, "/api/chat/messages/"+msg.ID.String()+"/", alice, nil)
  assert.Equal(t, http.StatusNoContent, w.Code)
  w = ts.do(t, http.MethodGet, "/api/chat/messages/"+msg.ID.String()+"/", alice, nil)
  assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterDuplicateEmailCaseInsensitive(t *testing.T) {
  ts := newTestServer(t)
  ts.signup(t, "alice")

  w := ts.do(t, http.MethodPost, "/api/auth/register/", "", gin.H{
    "username": "alice2",
    "email":    "ALICE@Example.com",
    "password": "password123",
  })
  assert.Equal(t, http.StatusBadRequest, w.Code)
  assert.Contains(t, w.Body.String(), `"detail"`)

  var n int64
  require.NoError(t, ts.db.Model(&types.User{}).Count(&n).Error)
  assert.Equal(t, int64(1), n)
}

func TestLoginWithEmailIdentifierAndWrongPassword(t *testing.T) {
  ts := newTestServer(t)
  ts.signup(t, "alice")

  w := ts.do(t, http.MethodPost, "/api/auth/login/", "", gin.H{"identifier": "Alice@Example.com", "password": "password123"})
  require.Equal(t, http.StatusOK, w.Code, w.Body.String())
  var res map[string]interface{}
  decode(t, w, &res)
  assert.Equal(t, "alice", res["username"])
  var cookie *http.Cookie
  for _, c := range w.Result().Cookies() {
    if c.Name == middleware.AccessTokenCookie {
      cookie = c
    }
  }
  require.NotNil(t, cookie)
  assert.True(t, cookie.HttpOnly)
  assert.Equal(t, res["access_token"], cookie.Value)
  assert.Equal(t, int((15 * time.Minute).Seconds()), cookie.MaxAge)

  w = ts.do(t, http.MethodPost, "/api/auth/login/", "", gin.H{"identifier": "alice@example.com", "password": "wrong"})
  assert.Equal(t, http.StatusBadRequest, w.Code)
  assert.JSONEq(t, `{"detail":"Invalid credentials."}`, w.Body.String())

  w = ts.do(t, http.MethodPost, "/api/auth/login/", "", gin.H{"identifier": "alice"})
  assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeLogoutAndTokenEndpoints(t *testing.T) {
  ts := newTestServer(t)
  token := ts.signup(t, "alice")

  w := ts.do(t, http.MethodGet, "/api/auth/me/", token, nil)
  require.Equal(t, http.StatusOK, w.Code)
  assert.Contains(t, w.Body.String(), `"username":"alice"`)
  assert.NotContains(t, w.Body.String(), "password")

  w = ts.do(t, http.MethodPost, "/api/auth/jwt/verify/", "", gin.H{"token": token})
  assert.Equal(t, http.StatusOK, w.Code)
  assert.JSONEq(t, `{}`, w.Body.String())

  w = ts.do(t, http.MethodPost, "/api/auth/logout/", token, nil)
  require.Equal(t, http.StatusOK, w.Code)

  w = ts.do(t, http.MethodGet, "/api/auth/me/", token, nil)
  assert.Equal(t, http.StatusUnauthorized, w.Code)
  w = ts.do(t, http.MethodPost, "/api/auth/jwt/verify/", "", gin.H{"token": token})
  assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesPair(t *testing.T) {
  ts := newTestServer(t)
  ts.signup(t, "alice")
  w := ts.do(t, http.MethodPost, "/api/auth/login/", "", gin.H{"identifier": "alice", "password": "password123"})
  require.Equal(t, http.StatusOK, w.Code)
  var login map[string]interface{}
  decode(t, w, &login)

  w = ts.do(t, http.MethodPost, "/api/auth/jwt/refresh/", "", gin.H{"refresh": login["refresh_token"]})
  require.Equal(t, http.StatusOK, w.Code, w.Body.String())
  var pair map[string]interface{}
  decode(t, w, &pair)
  assert.NotEqual(t, login["access_token"], pair["access"])

  w = ts.do(t, http.MethodGet, "/api/auth/me/", pair["access"].(string), nil)
  assert.Equal(t, http.StatusOK, w.Code)
  w = ts.do(t, http.MethodPost, "/api/auth/jwt/refresh/", "", gin.H{"refresh": login["refresh_token"]})
  assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCSRF(t *testing.T) {
  ts := newTestServer(t)
  w := ts.do(t, http.MethodGet, "/api/auth/csrf/", "", nil)
  require.Equal(t, http.StatusOK, w.Code)
  var res map[string]string
  decode(t, w, &res)
  assert.Len(t, res["csrfToken"], 64)
  var found bool
  for _, c := range w.Result().Cookies() {
    if c.Name == "csrftoken" {
      found = true
      assert.Equal(t, res["csrfToken"], c.Value)
    }
  }
  assert.True(t, found)
}
