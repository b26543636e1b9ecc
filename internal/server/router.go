package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/cocoja/cocoja-backend/internal/handlers"
  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/middleware"
)

var DefaultAllowedOrigins = []string{
  "http://localhost:3000",
  "http://127.0.0.1:3000",
  "http://localhost:5173",
}

type RouterConfig struct {
  Log                   *logger.Logger
  AllowedOrigins        []string
  AuthMiddleware        *middleware.AuthMiddleware
  AuthHandler           *handlers.AuthHandler
  ChatHandler           *handlers.ChatHandler
  ConversationHandler   *handlers.ConversationHandler
  MessageHandler        *handlers.MessageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.New()
  router.Use(gin.Recovery())
  router.Use(middleware.AttachRequestContext())
  router.Use(middleware.RequestLogger(cfg.Log))

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  origins := cfg.AllowedOrigins
  if len(origins) == 0 {
    origins = DefaultAllowedOrigins
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET","POST","PUT","DELETE","PATCH","OPTIONS"},
    AllowHeaders:     []string{"Authorization","Content-Type","X-Requested-With","X-CSRFToken"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)

  api := router.Group("/api")

  //-----------------------------------------
  // Auth Routes
  //-----------------------------------------
  auth := api.Group("/auth")
  {
    auth.POST("/register/", cfg.AuthHandler.Register)
    auth.POST("/login/", cfg.AuthHandler.Login)
    auth.GET("/csrf/", cfg.AuthHandler.CSRF)
    auth.POST("/jwt/refresh/", cfg.AuthHandler.Refresh)
    auth.POST("/jwt/verify/", cfg.AuthHandler.Verify)
  }
  authProtected := auth.Group("/")
  authProtected.Use(cfg.AuthMiddleware.RequireAuth())
  authProtected.POST("/logout/", cfg.AuthHandler.Logout)
  authProtected.GET("/me/", cfg.AuthHandler.Me)

  //-----------------------------------------
  // Chat Routes
  //-----------------------------------------
  chat := api.Group("/chat")
  chat.POST("/ask/", cfg.AuthMiddleware.OptionalAuth(), cfg.ChatHandler.Ask)

  protected := chat.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())

  //Conversations
  protected.GET("/conversations/", cfg.ConversationHandler.List)
  protected.POST("/conversations/", cfg.ConversationHandler.Create)
  protected.GET("/conversations/:id/", cfg.ConversationHandler.Get)
  protected.PUT("/conversations/:id/", cfg.ConversationHandler.Update)
  protected.PATCH("/conversations/:id/", cfg.ConversationHandler.Update)
  protected.DELETE("/conversations/:id/", cfg.ConversationHandler.Delete)
  protected.POST("/conversations/:id/add_message/", cfg.ConversationHandler.AddMessage)
  protected.GET("/conversations/:id/messages/", cfg.ConversationHandler.Messages)

  //Messages
  protected.GET("/messages/", cfg.MessageHandler.List)
  protected.POST("/messages/", cfg.MessageHandler.Create)
  protected.GET("/messages/:id/", cfg.MessageHandler.Get)
  protected.PUT("/messages/:id/", cfg.MessageHandler.Update)
  protected.PATCH("/messages/:id/", cfg.MessageHandler.Update)
  protected.DELETE("/messages/:id/", cfg.MessageHandler.Delete)

  return router
}
