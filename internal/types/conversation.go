package types

import (
  "time"

  "github.com/google/uuid"
)

const DefaultConversationTitle = "New conversation"

type Conversation struct {
  ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      uuid.UUID         `gorm:"type:uuid;index;not null" json:"-"`
  User        *User             `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
  Title       string            `gorm:"column:title;not null" json:"title"`
  Messages    []*Message        `gorm:"constraint:OnDelete:CASCADE;foreignKey:ConversationID;references:ID" json:"-"`

  CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
  UpdatedAt   time.Time         `gorm:"not null;index" json:"updated_at"`
}

func (Conversation) TableName() string {
  return "conversation"
}
