package memberapi

import (
	"context"

	domain "gymdesk/internal/domain/member"
)

// Store reaches the remote member service.
type Store interface {
	Create(ctx context.Context, fields domain.Fields) (domain.Member, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Member, error)
	GetByID(ctx context.Context, id int64) (domain.Member, error)
	Update(ctx context.Context, id int64, fields domain.Fields) (domain.Member, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, term string) ([]domain.Member, error)
	MembershipStatus(ctx context.Context, id int64) (Membership, error)
}

// ListFilter carries the query parameters accepted by GET /usuarios.
// Zero values are left off the query string.
type ListFilter struct {
	Skip       int
	Limit      int
	Department string
}

// Membership is the store's own view of whether a member may enter.
type Membership struct {
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
	StartDate string `json:"fecha_inicio"`
	EndDate   string `json:"fecha_fin"`
	Status    string `json:"estado"`
}

// Membership states reported by the store.
const (
	MembershipValid   = "VALIDO"
	MembershipExpired = "VENCIDO"
)

// IsValid reports whether the store considers the membership current.
func (m Membership) IsValid() bool {
	return m.Status == MembershipValid
}
