package middleware

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/cocoja/cocoja-backend/internal/errordata"
  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/services"
)

const AccessTokenCookie = "access_token"

type AuthMiddleware struct {
  log               *logger.Logger
  authService       services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
  middlewareLogger := log.With("Middleware", "AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    tokenString := extractTokenFromAll(c)
    if tokenString == "" {
      abortUnauthorized(c, "Authentication credentials were not provided.")
      return
    }
    ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
    if err != nil {
      am.log.Debug("Rejected token", "error", err)
      abortUnauthorized(c, "Invalid or expired token.")
      return
    }
    rd := requestdata.GetRequestData(ctx)
    if rd == nil || rd.UserID == uuid.Nil {
      abortUnauthorized(c, "Invalid or expired token.")
      return
    }
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

// OptionalAuth attaches the caller identity when a valid token is present.
// Missing or invalid tokens fall through as guest requests.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    if tokenString := extractTokenFromAll(c); tokenString != "" {
      ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
      if err != nil {
        am.log.Debug("Ignoring invalid token on optional route", "error", err)
      } else {
        c.Request = c.Request.WithContext(ctx)
      }
    }
    c.Next()
  }
}

func abortUnauthorized(c *gin.Context, detail string) {
  if ed := errordata.GetErrorData(c.Request.Context()); ed != nil {
    ed.SetMessage(detail)
  }
  c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}

func extractTokenFromAll(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return strings.TrimSpace(authHeader[7:])
  }
  if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
    return cookie
  }
  if qToken := c.Query("token"); qToken != "" {
    return qToken
  }
  return ""
}
