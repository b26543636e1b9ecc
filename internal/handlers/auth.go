package handlers

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/cocoja/cocoja-backend/internal/middleware"
  "github.com/cocoja/cocoja-backend/internal/services"
)

const csrfCookie = "csrftoken"

type AuthHandler struct {
  authService     services.AuthService
  meService       services.MeService
  secureCookies   bool
}

func NewAuthHandler(authService services.AuthService, meService services.MeService, secureCookies bool) *AuthHandler {
  return &AuthHandler{authService: authService, meService: meService, secureCookies: secureCookies}
}

func (ah *AuthHandler) Register(c *gin.Context) {
  var req struct {
    Username        string              `json:"username"`
    Email           string              `json:"email"`
    Password        string              `json:"password"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  user, err := ah.authService.RegisterUser(c.Request.Context(), req.Username, req.Email, req.Password)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username, "email": user.Email})
}

// Login accepts a username or an email in "identifier". "username" and
// "email" are honored when identifier is absent.
func (ah *AuthHandler) Login(c *gin.Context) {
  var req struct {
    Identifier      string          `json:"identifier"`
    Username        string          `json:"username"`
    Email           string          `json:"email"`
    Password        string          `json:"password"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  identifier := req.Identifier
  if strings.TrimSpace(identifier) == "" {
    identifier = req.Username
  }
  if strings.TrimSpace(identifier) == "" {
    identifier = req.Email
  }
  res, err := ah.authService.Login(c.Request.Context(), identifier, req.Password)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  ah.setAccessCookie(c, res.Tokens.AccessToken)
  c.JSON(http.StatusOK, gin.H{
    "id":            res.User.ID,
    "username":      res.User.Username,
    "email":         res.User.Email,
    "access_token":  res.Tokens.AccessToken,
    "refresh_token": res.Tokens.RefreshToken,
    "expires_in":    res.Tokens.ExpiresIn,
  })
}

func (ah *AuthHandler) Logout(c *gin.Context) {
  if err := ah.authService.Logout(c.Request.Context()); err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.SetSameSite(http.SameSiteLaxMode)
  c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", ah.secureCookies, true)
  c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."})
}

func (ah *AuthHandler) Me(c *gin.Context) {
  me, err := ah.meService.GetMe(c.Request.Context(), nil)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, gin.H{"id": me.ID, "username": me.Username, "email": me.Email})
}

// CSRF hands out a token and mirrors it in a readable cookie.
func (ah *AuthHandler) CSRF(c *gin.Context) {
  token := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
  c.SetSameSite(http.SameSiteLaxMode)
  c.SetCookie(csrfCookie, token, 60*60*24*365, "/", "", ah.secureCookies, false)
  c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
  var req struct {
    Refresh   string    `json:"refresh"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  pair, err := ah.authService.Refresh(c.Request.Context(), req.Refresh)
  if err != nil {
    respondError(c, err, keyDetail)
    return
  }
  ah.setAccessCookie(c, pair.AccessToken)
  c.JSON(http.StatusOK, gin.H{"access": pair.AccessToken, "refresh": pair.RefreshToken, "expires_in": pair.ExpiresIn})
}

func (ah *AuthHandler) Verify(c *gin.Context) {
  var req struct {
    Token   string    `json:"token"`
  }
  if err := bindOptionalJSON(c, &req); err != nil {
    respondBadBody(c, keyDetail)
    return
  }
  if err := ah.authService.Verify(c.Request.Context(), req.Token); err != nil {
    respondError(c, err, keyDetail)
    return
  }
  c.JSON(http.StatusOK, gin.H{})
}

// setAccessCookie stores the access token in an HttpOnly cookie that expires
// with the token.
func (ah *AuthHandler) setAccessCookie(c *gin.Context, accessToken string) {
  c.SetSameSite(http.SameSiteLaxMode)
  maxAge := int(ah.authService.GetAccessTTL().Seconds())
  c.SetCookie(middleware.AccessTokenCookie, accessToken, maxAge, "/", "", ah.secureCookies, true)
}
