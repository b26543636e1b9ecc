package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/cocoja/cocoja-backend/internal/services"
)

type ConversationHandler struct {
  conversationService   services.ConversationService
}

func NewConversationHandler(conversationService services.ConversationService) *ConversationHandler {
  return &ConversationHandler{conversationService: conversationService}
}

func (ch *ConversationHandler) List(c *gin.Context) {
  convs, err := ch.conversationService.ListConversations(c.Request.Context())
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, convs)
}

func (ch *ConversationHandler) Create(c *gin.Context) {
  var req struct {
    Title   string    `json:"title"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  conv, err := ch.conversationService.CreateConversation(c.Request.Context(), req.Title)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusCreated, conv)
}

func (ch *ConversationHandler) Get(c *gin.Context) {
  convID, ok := pathID(c)
  if !ok {
    return
  }
  conv, err := ch.conversationService.GetConversation(c.Request.Context(), convID)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, conv)
}

// Update serves PUT and PATCH. PUT requires a title.
func (ch *ConversationHandler) Update(c *gin.Context) {
  convID, ok := pathID(c)
  if !ok {
    return
  }
  var req struct {
    Title   *string   `json:"title"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  if c.Request.Method == http.MethodPut && req.Title == nil {
    respondError(c, services.NewValidationError("title", "This field is required."), keyDetail)
    return
  }
  conv, err := ch.conversationService.UpdateConversation(c.Request.Context(), convID, req.Title)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, conv)
}

func (ch *ConversationHandler) Delete(c *gin.Context) {
  convID, ok := pathID(c)
  if !ok {
    return
  }
  if err := ch.conversationService.DeleteConversation(c.Request.Context(), convID); err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.Status(http.StatusNoContent)
}

func (ch *ConversationHandler) AddMessage(c *gin.Context) {
  convID, ok := pathID(c)
  if !ok {
    return
  }
  var req struct {
    Role      string    `json:"role"`
    Content   string    `json:"content"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  msg, err := ch.conversationService.AddMessage(c.Request.Context(), convID, req.Role, req.Content)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusCreated, msg)
}

func (ch *ConversationHandler) Messages(c *gin.Context) {
  convID, ok := pathID(c)
  if !ok {
    return
  }
  msgs, err := ch.conversationService.ListConversationMessages(c.Request.Context(), convID)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, msgs)
}
