package types

import (
  "time"

  "github.com/google/uuid"
)

type User struct {
  ID                  uuid.UUID                 `gorm:"type:uuid;primaryKey" json:"id"`
  Username            string                    `gorm:"uniqueIndex;not null;column:username" json:"username"`
  Email               string                    `gorm:"not null;column:email" json:"email"`
  Password            string                    `gorm:"not null;column:password" json:"-"`

  CreatedAt           time.Time                 `gorm:"not null" json:"-"`
  UpdatedAt           time.Time                 `gorm:"not null" json:"-"`
}

func (User) TableName() string {
  return "user"
}
