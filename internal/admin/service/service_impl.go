package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/grievance-portal/internal/admin/authz"
	"github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/smallbiznis/grievance-portal/internal/admin/password"
	"github.com/smallbiznis/grievance-portal/internal/admin/session"
	"github.com/smallbiznis/grievance-portal/internal/clock"
	obslogger "github.com/smallbiznis/grievance-portal/internal/observability/logger"
	pkgdb "github.com/smallbiznis/grievance-portal/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	GenID    *snowflake.Node
	Repo     domain.Repository
	Tokens   *session.Tokens
	Enforcer *authz.Enforcer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	genID    *snowflake.Node
	repo     domain.Repository
	tokens   *session.Tokens
	enforcer *authz.Enforcer

	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	dummy, _ := password.Hash("not-a-real-password")
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("admin.service"),
		clock:     clk,
		genID:     p.GenID,
		repo:      p.Repo,
		tokens:    p.Tokens,
		enforcer:  p.Enforcer,
		dummyHash: dummy,
	}
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	admin, err := s.repo.FindByEmail(ctx, s.db, email)
	if errors.Is(err, domain.ErrAdminNotFound) {
		password.Verify(req.Password, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !password.Verify(req.Password, admin.PasswordHash) {
		s.log.Info("admin login rejected", zap.String("admin_id", admin.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(admin)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.repo.TouchLogin(ctx, s.db, admin.ID.Int64(), now); err != nil {
		s.log.Warn("failed to record admin login", zap.Error(err))
	} else {
		admin.LastLoginAt = &now
	}
	if password.NeedsRehash(admin.PasswordHash) {
		s.log.Info("admin password hash uses outdated parameters", zap.String("admin_id", admin.ID.String()))
	}

	return &domain.LoginResult{Token: token, ExpiresAt: expiresAt, Admin: admin}, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	return s.tokens.Parse(strings.TrimSpace(token))
}

func (s *Service) Authorize(ctx context.Context, principal *domain.Principal, object, action string) error {
	if principal == nil {
		return domain.ErrUnauthenticated
	}
	return s.enforcer.Authorize(principal.Subject(), principal.Role, object, action)
}

func (s *Service) Bootstrap(ctx context.Context, email, plain string) (*domain.AdminUser, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	var created *domain.AdminUser
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := s.repo.Count(ctx, tx)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrAdminExists
		}

		hash, err := password.Hash(plain)
		if err != nil {
			return err
		}
		user := &domain.AdminUser{
			ID:           s.genID.Generate(),
			Email:        email,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			CreatedAt:    s.clock.Now(),
		}
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrAdminExists
			}
			return err
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bootstrapped first admin",
		zap.String("admin_id", created.ID.String()),
		zap.String("email", obslogger.MaskEmail(created.Email)),
	)
	return created, nil
}
