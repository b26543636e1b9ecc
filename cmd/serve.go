package main

import (
  "context"
  "errors"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"

  "github.com/spf13/cobra"

  "github.com/cocoja/cocoja-backend/internal/cache"
  "github.com/cocoja/cocoja-backend/internal/db"
  "github.com/cocoja/cocoja-backend/internal/handlers"
  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/middleware"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/server"
  "github.com/cocoja/cocoja-backend/internal/services"
  "github.com/cocoja/cocoja-backend/internal/utils"
)

func newServeCmd(log *logger.Logger) *cobra.Command {
  var skipMigrate bool
  cmd := &cobra.Command{
    Use:   "serve",
    Short: "Run the HTTP API",
    RunE: func(cmd *cobra.Command, args []string) error {
      ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
      defer stop()
      return serve(ctx, log, !skipMigrate)
    },
  }
  cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run schema migration on startup")
  return cmd
}

func serve(ctx context.Context, log *logger.Logger, migrate bool) error {
  // Environment Variables
  log.Info("Attempting to load environment variables for Main now...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
  tokenCacheEnabled := utils.GetEnvAsBool("TOKEN_CACHE_ENABLED", false, log)
  redisAddress := utils.GetEnv("REDIS_ADDRESS", "localhost:6379", log)
  redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
  redisDB := utils.GetEnvAsInt("REDIS_DB", 0, log)
  historyLimit := utils.GetEnvAsInt("CHAT_HISTORY_LIMIT", services.DefaultHistoryLimit, log)
  allowedOrigins := utils.GetEnvAsList("CORS_ALLOWED_ORIGINS", server.DefaultAllowedOrigins, log)
  secureCookies := utils.GetEnvAsBool("COOKIE_SECURE", false, log)
  generatorConfig := services.GeneratorConfig{
    Backend:      utils.GetEnv("GENERATOR_BACKEND", services.GeneratorBackendKeyword, log),
    APIKey:       utils.GetEnv("OPENAI_API_KEY", "", log),
    BaseURL:      utils.GetEnv("OPENAI_BASE_URL", "", log),
    Model:        utils.GetEnv("OPENAI_MODEL", "", log),
    SystemPrompt: utils.GetEnv("OPENAI_SYSTEM_PROMPT", "", log),
    MaxTokens:    utils.GetEnvAsInt("OPENAI_MAX_TOKENS", 512, log),
    Temperature:  float32(utils.GetEnvAsFloat("OPENAI_TEMPERATURE", 0.7, log)),
    Timeout:      time.Duration(utils.GetEnvAsInt("OPENAI_TIMEOUT", 30, log)) * time.Second,
  }
  if jwtSecretKey == "defaultsecret" {
    log.Warn("JWT_SECRET_KEY is not set, using the insecure default")
  }
  log.Debug("Environment variables loaded for Main :)",
    "accessTokenTTL", accessTokenTTL,
    "refreshTokenTTL", refreshTokenTTL,
    "tokenCacheEnabled", tokenCacheEnabled,
    "redisAddress", redisAddress,
    "historyLimit", historyLimit,
    "generatorBackend", generatorConfig.Backend,
  )

  // Database Setup
  log.Info("Setting Up Database from Main now...")
  dbService, err := db.NewDatabaseService(log)
  if err != nil {
    return err
  }
  defer dbService.Close()
  if migrate {
    if err := dbService.AutoMigrateAll(); err != nil {
      return err
    }
  }
  theDB := dbService.DB()
  log.Info("Database Setup From Main Successful :)", "driver", dbService.Driver())

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(theDB, log)
  userTokenRepo := repos.NewUserTokenRepo(theDB, log)
  conversationRepo := repos.NewConversationRepo(theDB, log)
  messageRepo := repos.NewMessageRepo(theDB, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Token Cache Setup
  var tokenCache cache.TokenCache = cache.NopTokenCache{}
  if tokenCacheEnabled {
    redisCache, err := cache.NewRedisTokenCache(log, redisAddress, redisPassword, redisDB)
    if err != nil {
      log.Warn("Could not init Redis token cache, continuing without it", "error", err)
    } else {
      defer redisCache.Close()
      tokenCache = redisCache
      log.Info("Redis token cache is active!")
    }
  }

  // Services Setup
  log.Info("Setting up Services from Main now...")
  generator, err := services.NewResponseGenerator(generatorConfig, log)
  if err != nil {
    log.Warn("Could not init configured response generator, falling back to keyword replies", "error", err)
    generator = services.NewKeywordGenerator(log)
  }
  authService := services.NewAuthService(theDB, log, userRepo, userTokenRepo, tokenCache, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  meService := services.NewMeService(theDB, log, userRepo)
  chatService := services.NewChatService(theDB, log, conversationRepo, messageRepo, generator, historyLimit)
  conversationService := services.NewConversationService(theDB, log, conversationRepo, messageRepo)
  messageService := services.NewMessageService(theDB, log, conversationRepo, messageRepo)
  log.Info("Services Set Up From Main Successful :)")

  // Router Setup
  log.Info("Setting Up Router from Main now...")
  router := server.NewRouter(server.RouterConfig{
    Log:                 log,
    AllowedOrigins:      allowedOrigins,
    AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
    AuthHandler:         handlers.NewAuthHandler(authService, meService, secureCookies),
    ChatHandler:         handlers.NewChatHandler(chatService),
    ConversationHandler: handlers.NewConversationHandler(conversationService),
    MessageHandler:      handlers.NewMessageHandler(messageService),
  })
  log.Info("Router Set Up From Main Successful :)")

  port := utils.GetEnv("PORT", "8080", log)
  srv := &http.Server{
    Addr:              ":" + port,
    Handler:           router,
    ReadHeaderTimeout: 5 * time.Second,
    IdleTimeout:       120 * time.Second,
  }
  log.Info("Server listening", "addr", srv.Addr)
  return runServer(ctx, log, srv)
}

func runServer(ctx context.Context, log *logger.Logger, srv *http.Server) error {
  errCh := make(chan error, 1)
  go func() {
    errCh <- srv.ListenAndServe()
  }()

  select {
  case <-ctx.Done():
    log.Info("Shutting down server...")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
    if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
      return err
    }
    return nil
  case err := <-errCh:
    if errors.Is(err, http.ErrServerClosed) {
      return nil
    }
    return err
  }
}
