package handlers

import (
  "encoding/json"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/cocoja/cocoja-backend/internal/services"
)

type ChatHandler struct {
  chatService   services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
  return &ChatHandler{chatService: chatService}
}

// Ask is open to guests. A conversation_id that is not a uuid string is treated
// like an unknown one: the question is answered and nothing is stored.
func (ch *ChatHandler) Ask(c *gin.Context) {
  var req struct {
    Question        string            `json:"question"`
    ConversationID  json.RawMessage   `json:"conversation_id"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyError)
    return
  }
  result, err := ch.chatService.Ask(c.Request.Context(), req.Question, parseConversationID(req.ConversationID))
  if err != nil {
    respondError(c, err, keyError)
    return
  }
  c.JSON(http.StatusOK, gin.H{"answer": result.Answer})
}

func parseConversationID(raw json.RawMessage) *uuid.UUID {
  if len(raw) == 0 {
    return nil
  }
  var s string
  if err := json.Unmarshal(raw, &s); err != nil {
    return nil
  }
  parsed, err := uuid.Parse(strings.TrimSpace(s))
  if err != nil {
    return nil
  }
  return &parsed
}
