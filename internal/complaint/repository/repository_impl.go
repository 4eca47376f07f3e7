package repository

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/guard"
	"github.com/smallbiznis/grievance-portal/pkg/db/pagination"
	"gorm.io/gorm"
)

const complaintColumns = `id, content, customer_email, status, filing_fee,
	ai_response, complexity_score, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, complaint *domain.Complaint) error {
	return db.WithContext(ctx).Create(complaint).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Complaint, error) {
	var item domain.Complaint
	err := db.WithContext(ctx).Raw(
		`SELECT `+complaintColumns+`
		 FROM complaints
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id int64, from, to domain.Status, at time.Time) (bool, error) {
	if err := guard.EnsureTransition(from, to); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE complaints
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		at,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Resolve stores the letter and its score together and moves a received
// complaint to resolved.
func (r *repo) Resolve(ctx context.Context, db *gorm.DB, id int64, text string, score int, at time.Time) (bool, error) {
	if err := guard.EnsureTransition(domain.StatusReceived, domain.StatusResolved); err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE complaints
		 SET status = ?, ai_response = ?, complexity_score = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusResolved,
		text,
		score,
		at,
		id,
		domain.StatusReceived,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// List returns complaints newest first. A zero limit returns every row.
func (r *repo) List(ctx context.Context, db *gorm.DB, cursor *pagination.Cursor, limit int) ([]*domain.Complaint, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + complaintColumns + ` FROM complaints`)
	if cursor != nil {
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		query.WriteString(` WHERE (created_at < ? OR (created_at = ? AND id < ?))`)
		args = append(args, createdAt, createdAt, cursor.ID)
	}
	query.WriteString(` ORDER BY created_at DESC, id DESC`)
	if limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, limit)
	}

	var items []*domain.Complaint
	if err := db.WithContext(ctx).Raw(query.String(), args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type createdRow struct {
	CreatedAt time.Time
}

// CreatedSince returns creation times so daily buckets can be computed in
// UTC without dialect-specific date functions.
func (r *repo) CreatedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]time.Time, error) {
	var rows []createdRow
	err := db.WithContext(ctx).Raw(
		`SELECT created_at
		 FROM complaints
		 WHERE created_at >= ?`,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.CreatedAt)
	}
	return out, nil
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, status domain.Status, before time.Time, limit int) ([]*domain.Complaint, error) {
	var items []*domain.Complaint
	err := db.WithContext(ctx).Raw(
		`SELECT `+complaintColumns+`
		 FROM complaints
		 WHERE status = ? AND updated_at < ?
		 ORDER BY updated_at ASC, id ASC
		 LIMIT ?`,
		status,
		before,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimStale(ctx context.Context, db *gorm.DB, id int64, status domain.Status, before, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE complaints
		 SET updated_at = ?
		 WHERE id = ? AND status = ? AND updated_at < ?`,
		at,
		id,
		status,
		before,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
