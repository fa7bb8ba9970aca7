// Package catalog serves the read-only product catalog to mitra and drivers.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Deps are the collaborators of the catalog Service.
type Deps struct {
	Repo    ordertx.Runner
	Policy  Authorizer
	Timeout time.Duration
}

// Service lists and shows products.
type Service struct {
	repo             ordertx.Runner
	policy           Authorizer
	operationTimeout time.Duration
}

// NewService creates a new catalog Service.
func NewService(d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = 5 * time.Second
	}
	return &Service{repo: d.Repo, policy: d.Policy, operationTimeout: d.Timeout}
}

// ListProducts returns products by name, narrowed by f.
func (s *Service) ListProducts(ctx context.Context, actor domain.Actor, f domain.ProductFilter) ([]domain.Product, error) {
	if err := s.policy.Require(actor, authz.ResProduct, authz.ActList); err != nil {
		return nil, err
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, fmt.Errorf("negative paging: %w", apperr.ErrInvalid)
	}
	if f.Limit == 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	var out []domain.Product
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		out, err = q.ListProducts(ctx, ordertx.ProductQuery{
			Search:   strings.TrimSpace(f.Search),
			Category: strings.TrimSpace(f.Category),
			InStock:  f.InStock,
			Limit:    f.Limit,
			Offset:   f.Offset,
		})
		return err
	})
	return out, err
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, actor domain.Actor, id int64) (domain.Product, error) {
	if err := s.policy.Require(actor, authz.ResProduct, authz.ActRead); err != nil {
		return domain.Product{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	var p *domain.Product
	err := s.repo.View(ctx, func(q ordertx.Repository) error {
		var err error
		p, err = q.GetProduct(ctx, id)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	if p == nil {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	return *p, nil
}
