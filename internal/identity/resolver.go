// Package identity maps canonical mobile numbers to customer identifiers.
package identity

import (
	"context"

	customerdomain "github.com/railzwaylabs/orderetl/internal/customer/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Resolver interface {
	// Resolve returns the customer holding the mobile number, or nil when there is none.
	Resolve(ctx context.Context, mobile *string) (*string, error)
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Repo customerdomain.Repository
}

// StoreResolver looks customers up by exact canonical mobile number. When several customers share a
// number the lowest customer_id wins, matching the reconciliation pass.
type StoreResolver struct {
	db   *gorm.DB
	repo customerdomain.Repository
}

func NewResolver(p Params) Resolver {
	return &StoreResolver{db: p.DB, repo: p.Repo}
}

func (r *StoreResolver) Resolve(ctx context.Context, mobile *string) (*string, error) {
	if mobile == nil || *mobile == "" {
		return nil, nil
	}
	return r.repo.FindIDByMobile(ctx, r.db, *mobile)
}
