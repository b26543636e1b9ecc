package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  RoleUser      = "user"
  RoleAssistant = "assistant"
)

type Message struct {
  ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
  ConversationID    uuid.UUID         `gorm:"type:uuid;index;not null" json:"conversation"`
  Role              string            `gorm:"column:role;size:10;not null" json:"role"`
  Content           string            `gorm:"column:content;type:text;not null" json:"content"`
  CreatedAt         time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Message) TableName() string {
  return "message"
}

func ValidRole(role string) bool {
  return role == RoleUser || role == RoleAssistant
}
