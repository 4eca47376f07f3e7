package domain

import (
	"context"
	"time"

	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/smallbiznis/grievance-portal/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, complaint *Complaint) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Complaint, error)
	// TransitionStatus moves id from one status to another only if it is
	// still in from. It reports whether this call performed the write.
	TransitionStatus(ctx context.Context, db *gorm.DB, id int64, from, to Status, at time.Time) (bool, error)
	Resolve(ctx context.Context, db *gorm.DB, id int64, text string, score int, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, cursor *pagination.Cursor, limit int) ([]*Complaint, error)
	CreatedSince(ctx context.Context, db *gorm.DB, since time.Time) ([]time.Time, error)
	ListStale(ctx context.Context, db *gorm.DB, status Status, before time.Time, limit int) ([]*Complaint, error)
	// ClaimStale bumps updated_at to at if id is still in status and last
	// touched before the cutoff. Only one of several racing callers wins.
	ClaimStale(ctx context.Context, db *gorm.DB, id int64, status Status, before, at time.Time) (bool, error)
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	Complaints []*Complaint          `json:"complaints"`
	PageInfo   *pagination.PageInfo `json:"pageInfo,omitempty"`
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*Complaint, error)
	Get(ctx context.Context, id int64) (*Complaint, error)
	CreateCheckoutSession(ctx context.Context, id int64) (*paymentdomain.CheckoutSession, error)
	ReconcilePayment(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	DailyCounts(ctx context.Context) ([]DailyCount, error)
}

// Resolver produces the response letter for a received complaint. A
// failed or unusable completion resolves it with the fallback letter. A
// cancelled ctx leaves it received and returns ErrResolveInterrupted.
type Resolver interface {
	Resolve(ctx context.Context, complaintID int64) error
}

// Dispatcher hands a complaint to a Resolver outside the caller's request.
type Dispatcher interface {
	Dispatch(ctx context.Context, complaintID int64) error
}
