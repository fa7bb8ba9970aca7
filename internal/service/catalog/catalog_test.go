package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/service/catalog"
	"palmshell-dispatch/internal/testutil/memstore"
)

type fixture struct {
	store *memstore.Store
	svc   *catalog.Service
	mitra domain.Actor

	gradeA, gradeB, fibre int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	policy, err := authz.NewPolicy()
	require.NoError(t, err)

	f := &fixture{store: memstore.New()}
	f.mitra = domain.Actor{ID: f.store.AddUser(domain.User{Name: "Mitra", Role: domain.RoleMitra}), Role: domain.RoleMitra}
	f.gradeB = f.store.AddProduct(domain.Product{Name: "Cangkang Grade B", Category: "cangkang", Price: 80000})
	f.fibre = f.store.AddProduct(domain.Product{Name: "Fiber Sawit", Description: "Serat mesocarp", Category: "fiber", Price: 30000, Stock: 4})
	f.gradeA = f.store.AddProduct(domain.Product{Name: "Cangkang Grade A", Description: "Kering", Category: "cangkang", Price: 100000, Stock: 10})
	f.svc = catalog.NewService(catalog.Deps{Repo: f.store, Policy: policy})
	return f
}

func ids(list []domain.Product) []int64 {
	out := make([]int64, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestListProducts_Filters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter domain.ProductFilter
		want   []int64
	}{
		{name: "all by name", want: []int64{f.gradeA, f.gradeB, f.fibre}},
		{name: "category", filter: domain.ProductFilter{Category: " cangkang "}, want: []int64{f.gradeA, f.gradeB}},
		{name: "in stock", filter: domain.ProductFilter{InStock: true}, want: []int64{f.gradeA, f.fibre}},
		{name: "search description", filter: domain.ProductFilter{Search: "serat"}, want: []int64{f.fibre}},
		{name: "search name", filter: domain.ProductFilter{Search: "GRADE"}, want: []int64{f.gradeA, f.gradeB}},
		{name: "paging", filter: domain.ProductFilter{Limit: 1, Offset: 1}, want: []int64{f.gradeB}},
		{name: "past the end", filter: domain.ProductFilter{Offset: 5}, want: []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := f.svc.ListProducts(ctx, f.mitra, tt.filter)
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(list))
		})
	}
}

func TestListProducts_RejectsNegativePaging(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.ListProducts(context.Background(), f.mitra, domain.ProductFilter{Offset: -1})
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestListProducts_StoreError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	boom := errors.New("boom")
	f.store.Fail = func(op string) error {
		if op == "ListProducts" {
			return boom
		}
		return nil
	}

	_, err := f.svc.ListProducts(context.Background(), f.mitra, domain.ProductFilter{})
	require.ErrorIs(t, err, boom)
}

func TestGetProduct(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.GetProduct(ctx, f.mitra, f.fibre)
	require.NoError(t, err)
	require.Equal(t, "Fiber Sawit", p.Name)
	require.Equal(t, "fiber", p.Category)
	require.Equal(t, 4, p.Stock)

	_, err = f.svc.GetProduct(ctx, f.mitra, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCatalog_RequiresRole(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	anon := domain.Actor{}

	_, err := f.svc.ListProducts(ctx, anon, domain.ProductFilter{})
	require.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.GetProduct(ctx, anon, f.fibre)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}
