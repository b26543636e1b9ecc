package db

import (
  "fmt"
  "time"

  "gorm.io/driver/postgres"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/cocoja/cocoja-backend/internal/logger"
  "github.com/cocoja/cocoja-backend/internal/types"
  "github.com/cocoja/cocoja-backend/internal/utils"
)

// Timestamps are always written in UTC so they order the same on every driver.
func utcNow() time.Time {
  return time.Now().UTC()
}

type DatabaseService struct {
  db        *gorm.DB
  log       *logger.Logger
  driver    string
}

// NewDatabaseService opens the database selected by DB_DRIVER ("postgres" or "sqlite").
func NewDatabaseService(log *logger.Logger) (*DatabaseService, error) {
  driver := utils.GetEnv("DB_DRIVER", "postgres", log)
  switch driver {
  case "postgres":
    return NewPostgresService(log)
  case "sqlite":
    return NewSQLiteService(log, utils.GetEnv("SQLITE_PATH", "cocoja.db", log))
  default:
    return nil, fmt.Errorf("unsupported DB_DRIVER %q (expected 'postgres' or 'sqlite')", driver)
  }
}

func NewPostgresService(log *logger.Logger) (*DatabaseService, error) {
  serviceLog := log.With("service", "DatabaseService", "driver", "postgres")

  //1) Get and Set Environment Variables
  serviceLog.Info("Attempting to load environment variables for Postgres now...")
  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "cocoja", log)
  postgresSSLMode := utils.GetEnv("POSTGRES_SSLMODE", "disable", log)
  serviceLog.Debug("Environment variables loaded for Postgres",
    "host", postgresHost,
    "port", postgresPort,
    "user", postgresUser,
    "dbname", postgresName,
  )

  //2) Construct DSN From Environment Variables
  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, postgresSSLMode)

  //3) Attempt DB Connection
  serviceLog.Info("Attempting to connect to Postgres DB now...")
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
    NowFunc:        utcNow,
    TranslateError: true,
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres DB", "error", err)
    return nil, fmt.Errorf("failed to connect to Postgres DB: %w", err)
  }
  serviceLog.Info("Successfully Connected to Postgres DB :)")
  return &DatabaseService{db: db, log: serviceLog, driver: "postgres"}, nil
}

// NewSQLiteService opens a SQLite database at path. ":memory:" gives a private
// in-memory database, which is what the tests use.
func NewSQLiteService(log *logger.Logger, path string) (*DatabaseService, error) {
  serviceLog := log.With("service", "DatabaseService", "driver", "sqlite")
  dsn := path + "?_foreign_keys=on"
  if path == ":memory:" {
    dsn = "file::memory:?_foreign_keys=on"
  }
  serviceLog.Info("Attempting to open SQLite DB now...", "path", path)
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
    NowFunc:        utcNow,
    TranslateError: true,
  })
  if err != nil {
    serviceLog.Error("Failed to open SQLite DB", "error", err)
    return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
  }
  sqlDB, err := db.DB()
  if err != nil {
    return nil, fmt.Errorf("failed to get SQLite handle: %w", err)
  }
  // One connection keeps an in-memory database alive and serializes writers.
  sqlDB.SetMaxOpenConns(1)
  serviceLog.Info("Successfully Opened SQLite DB :)")
  return &DatabaseService{db: db, log: serviceLog, driver: "sqlite"}, nil
}

func (s *DatabaseService) AutoMigrateAll() error {
  s.log.Info("Starting AutoMigrateAll for all GORM models now...")

  err := s.db.AutoMigrate(
    &types.User{},
    &types.UserToken{},
    &types.Conversation{},
    &types.Message{},
  )
  if err != nil {
    s.log.Error("AutoMigrateAll failed for Base Tables :(", "error", err)
    return err
  }
  s.log.Info("AutoMigrateAll completed successfully for Base Tables :)")

  // -- User.email is unique regardless of case
  if err := s.db.Exec(`
      CREATE UNIQUE INDEX IF NOT EXISTS "idx_user_email_lower"
      ON "user" (LOWER("email"))
  `).Error; err != nil {
    return fmt.Errorf("failed to add idx_user_email_lower: %w", err)
  }
  // -- Message listing per conversation in creation order
  if err := s.db.Exec(`
      CREATE INDEX IF NOT EXISTS "idx_message_conversation_created"
      ON "message" ("conversation_id", "created_at")
  `).Error; err != nil {
    return fmt.Errorf("failed to add idx_message_conversation_created: %w", err)
  }
  s.log.Info("Successfully Added Extra Indexes to Base Tables :)")
  return nil
}

func (s *DatabaseService) DB() *gorm.DB {
  return s.db
}

func (s *DatabaseService) Driver() string {
  return s.driver
}

func (s *DatabaseService) Close() error {
  sqlDB, err := s.db.DB()
  if err != nil {
    return err
  }
  return sqlDB.Close()
}
