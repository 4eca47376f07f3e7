// Package authz holds the casbin policy guarding the admin API.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Enforcer checks admin subjects against the stored role policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: enforcer}, nil
}

func roleSubject(role string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(role))
}

// Authorize links subject to its role and enforces object/action. It
// returns domain.ErrForbidden when the policy denies the request.
func (e *Enforcer) Authorize(subject, role, object, action string) error {
	if subject == "" || role == "" {
		return domain.ErrForbidden
	}
	if err := e.ensureGrouping(subject, roleSubject(role)); err != nil {
		return err
	}
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}

func (e *Enforcer) ensureGrouping(subject, role string) error {
	existing, err := e.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) >= 2 && rule[1] != role {
			if _, err := e.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
				return err
			}
		}
	}
	has, err := e.enforcer.HasGroupingPolicy(subject, role)
	if err != nil || has {
		return err
	}
	_, err = e.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	admin := roleSubject(domain.RoleAdmin)
	policies := [][]string{
		{admin, domain.ObjectComplaints, domain.ActionRead},
		{admin, domain.ObjectStats, domain.ActionRead},
		{admin, domain.ObjectReports, domain.ActionRead},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
