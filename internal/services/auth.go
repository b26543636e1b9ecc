package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "time"

  "github.com/go-playground/validator/v10"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/cocoja/cocoja-backend/internal/cache"
  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/normalization"
  "github.com/cocoja/cocoja-backend/internal/repos"
  "github.com/cocoja/cocoja-backend/internal/requestdata"
  "github.com/cocoja/cocoja-backend/internal/types"
  "github.com/cocoja/cocoja-backend/internal/utils"
)

const minPasswordLength = 8

var validate = validator.New()

type JWTClaims struct {
  jwt.RegisteredClaims
  Username    string      `json:"username,omitempty"`
}

type TokenPair struct {
  AccessToken   string    `json:"access_token"`
  RefreshToken  string    `json:"refresh_token"`
  ExpiresIn     int       `json:"expires_in"`
}

type LoginResult struct {
  User    *types.User
  Tokens  TokenPair
}

type AuthService interface {
  RegisterUser(ctx context.Context, username, email, password string) (*types.User, error)
  Login(ctx context.Context, identifier, password string) (*LoginResult, error)
  Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
  Verify(ctx context.Context, tokenString string) error
  Logout(ctx context.Context) error

  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

  GetAccessTTL() time.Duration
}

type authService struct {
  db                *gorm.DB
  log               *logger.Logger
  userRepo          repos.UserRepo
  userTokenRepo     repos.UserTokenRepo
  tokenCache        cache.TokenCache
  jwtSecretKey      string
  accessTTL         time.Duration
  refreshTTL        time.Duration
}

func NewAuthService(
  db                *gorm.DB,
  log               *logger.Logger,
  userRepo          repos.UserRepo,
  userTokenRepo     repos.UserTokenRepo,
  tokenCache        cache.TokenCache,
  jwtSecretKey      string,
  accessTTL         time.Duration,
  refreshTTL        time.Duration,
) AuthService {
  serviceLog := log.With("service", "AuthService")
  if tokenCache == nil {
    tokenCache = cache.NopTokenCache{}
  }
  return &authService{
    db:             db,
    log:            serviceLog,
    userRepo:       userRepo,
    userTokenRepo:  userTokenRepo,
    tokenCache:     tokenCache,
    jwtSecretKey:   jwtSecretKey,
    accessTTL:      accessTTL,
    refreshTTL:     refreshTTL,
  }
}

//----------------------------------------------------------------------------------------------------------------------
// RegisterUser
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) RegisterUser(ctx context.Context, username, email, password string) (*types.User, error) {
  as.log.Info("Starting Register User now...")
  //1) Normalize User Fields
  user := &types.User{Username: username, Email: email, Password: password}
  utils.NormalizeUserFields(ctx, user)

  //2) Checks on user fields
  vErr := &ValidationError{}
  if user.Username == "" {
    vErr.Add("username", "Username is required.")
  } else {
    exists, err := as.userRepo.UsernameExists(ctx, nil, user.Username)
    if err != nil {
      return nil, fmt.Errorf("error checking username: %w", err)
    }
    if exists {
      vErr.Add("username", "A user with that username already exists.")
    }
  }
  if user.Email == "" {
    vErr.Add("email", "Email is required.")
  } else if err := validate.Var(user.Email, "email"); err != nil {
    vErr.Add("email", "Enter a valid email address.")
  } else {
    exists, err := as.userRepo.EmailExists(ctx, nil, normalization.ParseEmail(user.Email))
    if err != nil {
      return nil, fmt.Errorf("error checking email: %w", err)
    }
    if exists {
      vErr.Add("email", "A user with that email already exists.")
    }
  }
  if len([]rune(user.Password)) < minPasswordLength {
    vErr.Add("password", fmt.Sprintf("Password must be at least %d characters long.", minPasswordLength))
  }
  if vErr.HasErrors() {
    as.log.Warn("Registration rejected", "fields", vErr.FieldNames())
    return nil, vErr
  }

  //3) Hash Password
  if hErr := utils.HashPassword(ctx, as.log, user); hErr != nil {
    return nil, hErr
  }

  //4) Create
  if _, cErr := as.userRepo.Create(ctx, nil, []*types.User{user}); cErr != nil {
    if errors.Is(cErr, gorm.ErrDuplicatedKey) {
      if dupErr := as.duplicateUserError(ctx, user); dupErr != nil {
        as.log.Warn("Registration lost a uniqueness race", "fields", dupErr.FieldNames())
        return nil, dupErr
      }
    }
    as.log.Warn("Create User Error, Cannot proceed. Returning error.", "error", cErr)
    return nil, fmt.Errorf("error creating user: %w", cErr)
  }
  as.log.Info("User registered", "userID", user.ID)
  return user, nil
}

// duplicateUserError reports which identity field a unique-index violation hit.
// A concurrent registration can land between the existence checks and the insert.
func (as *authService) duplicateUserError(ctx context.Context, user *types.User) *ValidationError {
  vErr := &ValidationError{}
  if exists, err := as.userRepo.UsernameExists(ctx, nil, user.Username); err == nil && exists {
    vErr.Add("username", "A user with that username already exists.")
  }
  if exists, err := as.userRepo.EmailExists(ctx, nil, normalization.ParseEmail(user.Email)); err == nil && exists {
    vErr.Add("email", "A user with that email already exists.")
  }
  if !vErr.HasErrors() {
    return nil
  }
  return vErr
}

//----------------------------------------------------------------------------------------------------------------------
// Login, Refresh, Verify, Logout
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
  //1) Normalize Input
  identifier = normalization.ParseInputString(identifier)
  if identifier == "" || password == "" {
    return nil, &InputError{Message: "Identifier and password are required."}
  }

  //2) Resolve identifier to a user
  user, err := as.resolveIdentifier(ctx, identifier)
  if err != nil {
    return nil, err
  }
  if user == nil || !utils.CheckPassword(user, password) {
    as.log.Warn("Invalid credentials", "identifier", identifier)
    return nil, ErrInvalidCredentials
  }

  //3) Issue tokens
  var pair *TokenPair
  if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if dErr := as.userTokenRepo.FullDeleteExpiredByUserIDs(ctx, tx, []uuid.UUID{user.ID}, time.Now()); dErr != nil {
      as.log.Warn("Failed to delete expired user tokens, Cannot proceed. Returning error.", "error", dErr)
      return fmt.Errorf("failed to delete expired user tokens: %w", dErr)
    }
    issued, iErr := as.issueTokens(ctx, tx, user)
    if iErr != nil {
      return iErr
    }
    pair = issued
    return nil
  }); err != nil {
    return nil, err
  }
  as.log.Info("User logged in", "userID", user.ID)
  return &LoginResult{User: user, Tokens: *pair}, nil
}

// resolveIdentifier treats an identifier containing "@" as an email first and
// falls back to a username lookup.
func (as *authService) resolveIdentifier(ctx context.Context, identifier string) (*types.User, error) {
  if strings.Contains(identifier, "@") {
    user, err := as.userRepo.GetByEmailInsensitive(ctx, nil, normalization.ParseEmail(identifier))
    if err == nil {
      return user, nil
    }
    if !errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, fmt.Errorf("error retrieving user by email: %w", err)
    }
  }
  user, err := as.userRepo.GetByUsername(ctx, nil, identifier)
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, fmt.Errorf("error retrieving user by username: %w", err)
  }
  return user, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
  refreshToken = normalization.ParseInputString(refreshToken)
  if refreshToken == "" {
    return nil, &InputError{Message: "Refresh token is required."}
  }
  var pair *TokenPair
  var oldAccessToken string
  err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    foundTokens, fTErr := as.userTokenRepo.GetByRefreshTokens(ctx, tx, []string{refreshToken})
    if fTErr != nil {
      as.log.Warn("Error fetching refresh token, Cannot proceed. Returning error.", "error", fTErr)
      return fmt.Errorf("error fetching refresh token: %w", fTErr)
    }
    if len(foundTokens) == 0 {
      return fmt.Errorf("%w: unknown refresh token", ErrUnauthenticated)
    }
    existingToken := foundTokens[0]
    if existingToken.ExpiresAt.Before(time.Now()) {
      if dTErr := as.userTokenRepo.FullDeleteByTokens(ctx, tx, []*types.UserToken{existingToken}); dTErr != nil {
        return fmt.Errorf("refresh token expired, error deleting: %w", dTErr)
      }
      as.log.Warn("Refresh Token Expired, Cannot proceed.")
      return fmt.Errorf("%w: refresh token expired", ErrUnauthenticated)
    }
    users, uErr := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{existingToken.UserID})
    if uErr != nil {
      return fmt.Errorf("failed to load user for refresh: %w", uErr)
    }
    if len(users) == 0 {
      return fmt.Errorf("%w: no user for refresh token", ErrUnauthenticated)
    }
    issued, iErr := as.issueTokens(ctx, tx, users[0])
    if iErr != nil {
      return iErr
    }
    if dErr := as.userTokenRepo.FullDeleteByTokens(ctx, tx, []*types.UserToken{existingToken}); dErr != nil {
      return fmt.Errorf("failed to remove old refresh token: %w", dErr)
    }
    oldAccessToken = existingToken.AccessToken
    pair = issued
    return nil
  })
  if err != nil {
    as.log.Warn("Refresh failed", "error", err)
    return nil, err
  }
  as.evict(ctx, oldAccessToken)
  return pair, nil
}

func (as *authService) Verify(ctx context.Context, tokenString string) error {
  if strings.TrimSpace(tokenString) == "" {
    return &InputError{Message: "Token is required."}
  }
  _, err := as.SetContextFromToken(ctx, tokenString)
  return err
}

func (as *authService) Logout(ctx context.Context) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.TokenString == "" {
    as.log.Warn("No token in Request Data, Cannot proceed.")
    return ErrUnauthenticated
  }
  if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    foundTokens, fTErr := as.userTokenRepo.GetByAccessTokens(ctx, tx, []string{rd.TokenString})
    if fTErr != nil {
      as.log.Warn("Error finding user token from token string, Cannot proceed. Returning error.", "error", fTErr)
      return fmt.Errorf("error finding user token from token string: %w", fTErr)
    }
    if tDErr := as.userTokenRepo.FullDeleteByTokens(ctx, tx, foundTokens); tDErr != nil {
      as.log.Warn("Error deleting user token, Cannot proceed. Returning error.", "error", tDErr)
      return fmt.Errorf("error deleting user token: %w", tDErr)
    }
    return nil
  }); err != nil {
    return err
  }
  as.evict(ctx, rd.TokenString)
  as.log.Info("User logged out", "userID", rd.UserID)
  return nil
}

//----------------------------------------------------------------------------------------------------------------------
// Tokens
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*TokenPair, error) {
  accessToken, genErr := as.generateAccessToken(user)
  if genErr != nil {
    as.log.Warn("Generate Access Token Error, Cannot proceed. Returning error.", "error", genErr)
    return nil, fmt.Errorf("generate access token error: %w", genErr)
  }
  userToken := &types.UserToken{
    UserID:       user.ID,
    AccessToken:  accessToken,
    RefreshToken: uuid.New().String(),
    ExpiresAt:    time.Now().Add(as.refreshTTL),
  }
  if _, cTErr := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{userToken}); cTErr != nil {
    as.log.Warn("Create User Token Error, Cannot proceed. Returning error.", "error", cTErr)
    return nil, fmt.Errorf("create user token error: %w", cTErr)
  }
  return &TokenPair{
    AccessToken:  accessToken,
    RefreshToken: userToken.RefreshToken,
    ExpiresIn:    int(as.accessTTL.Seconds()),
  }, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
  now := time.Now()
  claims := JWTClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      ID:        uuid.New().String(),
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(now),
    },
    Username: user.Username,
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

// SetContextFromToken verifies tokenString and stores the caller identity in
// the returned context. An empty token leaves ctx untouched.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, nil
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
  if err != nil {
    return ctx, fmt.Errorf("%w: failed to parse token: %v", ErrUnauthenticated, err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, fmt.Errorf("%w: invalid or expired JWT token", ErrUnauthenticated)
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("%w: invalid user ID in token", ErrUnauthenticated)
  }

  session, hit, cErr := as.tokenCache.Get(ctx, tokenString)
  if cErr != nil {
    as.log.Warn("Token cache lookup failed, falling back to database", "error", cErr)
  }
  if !hit || session == nil || session.UserID != userID {
    session, err = as.loadSession(ctx, tokenString, userID)
    if err != nil {
      return ctx, err
    }
    if claims.ExpiresAt != nil {
      if sErr := as.tokenCache.Set(ctx, tokenString, session, time.Until(claims.ExpiresAt.Time)); sErr != nil {
        as.log.Warn("Failed to cache session", "error", sErr)
      }
    }
  }

  rd := &requestdata.RequestData{
    TokenString:  tokenString,
    RefreshToken: session.RefreshToken,
    UserID:       session.UserID,
    Username:     session.Username,
    Email:        session.Email,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) loadSession(ctx context.Context, tokenString string, userID uuid.UUID) (*cache.Session, error) {
  foundTokens, fTErr := as.userTokenRepo.GetByAccessTokens(ctx, nil, []string{tokenString})
  if fTErr != nil {
    as.log.Warn("Error fetching user token by access token, Cannot proceed. Returning error.", "error", fTErr)
    return nil, fmt.Errorf("failed to fetch user token by access token: %w", fTErr)
  }
  if len(foundTokens) == 0 || foundTokens[0].UserID != userID {
    return nil, fmt.Errorf("%w: token has been revoked", ErrUnauthenticated)
  }
  if foundTokens[0].ExpiresAt.Before(time.Now()) {
    return nil, fmt.Errorf("%w: session expired", ErrUnauthenticated)
  }
  users, uErr := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if uErr != nil {
    return nil, fmt.Errorf("failed to load user for token: %w", uErr)
  }
  if len(users) == 0 {
    return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthenticated)
  }
  return &cache.Session{
    UserID:       userID,
    Username:     users[0].Username,
    Email:        users[0].Email,
    RefreshToken: foundTokens[0].RefreshToken,
  }, nil
}

func (as *authService) evict(ctx context.Context, accessToken string) {
  if accessToken == "" {
    return
  }
  if err := as.tokenCache.Delete(ctx, accessToken); err != nil {
    as.log.Warn("Failed to evict token from cache", "error", err)
  }
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}
