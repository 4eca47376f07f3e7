package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Objects and actions understood by the admin policy.
const (
	ObjectComplaints = "complaints"
	ObjectStats      = "stats"
	ObjectReports    = "reports"

	ActionRead = "read"
)

type Repository interface {
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, user *AdminUser) error
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*AdminUser, error)
	TouchLogin(ctx context.Context, db *gorm.DB, id int64, at time.Time) error
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Admin     *AdminUser
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	Authorize(ctx context.Context, principal *Principal, object, action string) error
	// Bootstrap creates the first admin when none exists yet.
	Bootstrap(ctx context.Context, email, password string) (*AdminUser, error)
}
