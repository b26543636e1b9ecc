package main

import (
  "fmt"
  "os"

  "github.com/joho/godotenv"
  "github.com/spf13/cobra"

  "github.com/cocoja/cocoja-backend/internal/db"
  "github.com/cocoja/cocoja-backend/internal/logger"
)

var rootCmd = &cobra.Command{
  Use:            "cocoja",
  Short:          "Conversational assistant backend",
  SilenceUsage:   true,
}

func main() {
  // .env is optional; the process environment always wins.
  envErr := godotenv.Load()

  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()
  if envErr != nil {
    log.Debug("No .env file loaded, using process environment only", "error", envErr)
  }

  rootCmd.AddCommand(newServeCmd(log), newMigrateCmd(log))
  if err := rootCmd.Execute(); err != nil {
    log.Error("Command failed", "error", err)
    log.Sync()
    os.Exit(1)
  }
}

func newMigrateCmd(log *logger.Logger) *cobra.Command {
  return &cobra.Command{
    Use:   "migrate",
    Short: "Create or update the database schema and exit",
    RunE: func(cmd *cobra.Command, args []string) error {
      dbService, err := db.NewDatabaseService(log)
      if err != nil {
        return err
      }
      defer dbService.Close()
      if err := dbService.AutoMigrateAll(); err != nil {
        return fmt.Errorf("auto migration failed: %w", err)
      }
      log.Info("Migration complete", "driver", dbService.Driver())
      return nil
    },
  }
}
