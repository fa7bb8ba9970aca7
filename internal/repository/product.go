package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

const productColumns = `id, name, description, category, price, stock`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Price, &p.Stock); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *TxRepo) getProduct(ctx context.Context, id int64, lock string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `
        SELECT `+productColumns+`
        FROM products
        WHERE id = $1
        `+lock, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// GetProduct returns a catalog entry.
func (r *TxRepo) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return r.getProduct(ctx, id, "")
}

// GetProductForUpdate locks the product row.
func (r *TxRepo) GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.getProduct(ctx, id, "FOR UPDATE")
}

// ListProducts returns the catalog by name. Search is a case-insensitive
// substring match on name or description.
func (r *TxRepo) ListProducts(ctx context.Context, q ordertx.ProductQuery) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(q.Search); s != "" {
		args = append(args, "%"+likeEscaper.Replace(s)+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.InStock {
		where = append(where, "stock > 0")
	}

	sql := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY name, id"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// AddProductStock changes stock by delta. The stock >= 0 check guards against oversell.
func (r *TxRepo) AddProductStock(ctx context.Context, id int64, delta int) error {
	ct, err := r.q.Exec(ctx, `
        UPDATE products
        SET stock = stock + $2, updated_at = now()
        WHERE id = $1
    `, id, delta)
	if err != nil {
		return fmt.Errorf("add stock %d to product %d: %w", delta, id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found", id)
	}
	return nil
}
