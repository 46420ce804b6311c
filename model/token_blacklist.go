package model

import (
	"time"

	"gorm.io/gorm"
)

// JWTTokenBlacklist stores revoked token JTIs until they expire
type JWTTokenBlacklist struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Token     string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"token"` // JTI
	UserID    string         `gorm:"type:uuid;not null;index" json:"user_id"`
	Reason    string         `gorm:"type:varchar(100)" json:"reason"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for JWTTokenBlacklist
func (JWTTokenBlacklist) TableName() string {
	return "jwt_token_blacklist"
}
