package authz

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:authz_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestAdminRoleCanRead(t *testing.T) {
	e, err := NewEnforcer(openDB(t))
	require.NoError(t, err)

	for _, object := range []string{domain.ObjectComplaints, domain.ObjectStats, domain.ObjectReports} {
		require.NoError(t, e.Authorize("admin:1", domain.RoleAdmin, object, domain.ActionRead), object)
	}
}

func TestUnknownRoleIsForbidden(t *testing.T) {
	e, err := NewEnforcer(openDB(t))
	require.NoError(t, err)

	require.ErrorIs(t, e.Authorize("admin:2", "viewer", domain.ObjectComplaints, domain.ActionRead), domain.ErrForbidden)
	require.ErrorIs(t, e.Authorize("admin:1", domain.RoleAdmin, domain.ObjectComplaints, "delete"), domain.ErrForbidden)
	require.ErrorIs(t, e.Authorize("", domain.RoleAdmin, domain.ObjectComplaints, domain.ActionRead), domain.ErrForbidden)
}

func TestRoleChangeReplacesGrouping(t *testing.T) {
	e, err := NewEnforcer(openDB(t))
	require.NoError(t, err)

	require.NoError(t, e.Authorize("admin:3", domain.RoleAdmin, domain.ObjectStats, domain.ActionRead))
	require.ErrorIs(t, e.Authorize("admin:3", "viewer", domain.ObjectStats, domain.ActionRead), domain.ErrForbidden)
}

func TestSeedIsIdempotent(t *testing.T) {
	db := openDB(t)
	_, err := NewEnforcer(db)
	require.NoError(t, err)
	_, err = NewEnforcer(db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM casbin_rule WHERE ptype = 'p'`).Scan(&count).Error)
	require.EqualValues(t, 3, count)
}
