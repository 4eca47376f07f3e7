package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const RoleAdmin = "admin"

type AdminUser struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Email        string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string       `json:"-" gorm:"column:password_hash;type:text;not null"`
	Role         string       `json:"role" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"createdAt" gorm:"not null"`
	LastLoginAt  *time.Time   `json:"lastLoginAt,omitempty"`
}

func (AdminUser) TableName() string { return "admin_users" }

// Principal is the authenticated admin carried on a request.
type Principal struct {
	AdminID   snowflake.ID
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Subject is the casbin subject for the principal.
func (p Principal) Subject() string {
	return "admin:" + p.AdminID.String()
}
