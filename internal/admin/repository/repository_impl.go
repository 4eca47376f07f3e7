package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM admin_users`).Scan(&count).Error
	return count, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.AdminUser) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO admin_users (id, email, password_hash, role, created_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
		user.LastLoginAt,
	).Error
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.AdminUser, error) {
	var user domain.AdminUser
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, password_hash, role, created_at, last_login_at
		 FROM admin_users
		 WHERE email = ?
		 LIMIT 1`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, domain.ErrAdminNotFound
	}
	return &user, nil
}

func (r *repo) TouchLogin(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE admin_users SET last_login_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
