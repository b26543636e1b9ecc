package handlers

import (
  "fmt"
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/cocoja/cocoja-backend/internal/services"
)

type MessageHandler struct {
  messageService    services.MessageService
}

func NewMessageHandler(messageService services.MessageService) *MessageHandler {
  return &MessageHandler{messageService: messageService}
}

func (mh *MessageHandler) List(c *gin.Context) {
  var convFilter *uuid.UUID
  if raw := strings.TrimSpace(c.Query("conversation")); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      respondError(c, services.NewValidationError("conversation", "Select a valid choice."), keyDetail)
      return
    }
    convFilter = &parsed
  }
  msgs, err := mh.messageService.ListMessages(c.Request.Context(), convFilter)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, msgs)
}

func (mh *MessageHandler) Create(c *gin.Context) {
  var req struct {
    Conversation  string    `json:"conversation"`
    Role          string    `json:"role"`
    Content       string    `json:"content"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  var convID uuid.UUID
  if raw := strings.TrimSpace(req.Conversation); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      respondError(c, services.NewValidationError("conversation", fmt.Sprintf("Invalid pk %q - object does not exist.", raw)), keyDetail)
      return
    }
    convID = parsed
  }
  msg, err := mh.messageService.CreateMessage(c.Request.Context(), convID, req.Role, req.Content)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusCreated, msg)
}

func (mh *MessageHandler) Get(c *gin.Context) {
  msgID, ok := pathID(c)
  if !ok {
    return
  }
  msg, err := mh.messageService.GetMessage(c.Request.Context(), msgID)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, msg)
}

// Update serves PUT (role and content required) and PATCH (either).
func (mh *MessageHandler) Update(c *gin.Context) {
  msgID, ok := pathID(c)
  if !ok {
    return
  }
  var req struct {
    Role      *string   `json:"role"`
    Content   *string   `json:"content"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  if c.Request.Method == http.MethodPut {
    vErr := &services.ValidationError{}
    if req.Role == nil {
      vErr.Add("role", "This field is required.")
    }
    if req.Content == nil {
      vErr.Add("content", "This field is required.")
    }
    if vErr.HasErrors() {
      respondError(c, vErr, keyDetail)
      return
    }
  }
  msg, err := mh.messageService.UpdateMessage(c.Request.Context(), msgID, req.Role, req.Content)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, msg)
}

func (mh *MessageHandler) Delete(c *gin.Context) {
  msgID, ok := pathID(c)
  if !ok {
    return
  }
  if err := mh.messageService.DeleteMessage(c.Request.Context(), msgID); err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.Status(http.StatusNoContent)
}
