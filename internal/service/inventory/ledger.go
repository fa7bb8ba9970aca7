// Package inventory reserves and releases product stock inside the caller's transaction.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"palmshell-dispatch/internal/apperr"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/ports/ordertx"
)

// Reservation is the stock taken for one line with the price seen under the lock.
type Reservation struct {
	ProductID int64
	Name      string
	UnitPrice int64
	Quantity  int
}

// Item converts the reservation into an order line snapshot.
func (r Reservation) Item() domain.OrderItem {
	return domain.NewOrderItem(r.ProductID, r.Name, r.UnitPrice, r.Quantity)
}

// Ledger is stateless; every call runs against the store it is given.
type Ledger struct{}

// NewLedger returns a Ledger.
func NewLedger() *Ledger { return &Ledger{} }

// Reserve locks the product row, checks the stock and decrements it.
func (l *Ledger) Reserve(ctx context.Context, tx ordertx.ProductStore, productID int64, qty int) (Reservation, error) {
	if qty < 1 {
		return Reservation{}, &apperr.ItemError{ProductID: productID, Reason: "quantity must be at least 1"}
	}

	p, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return Reservation{}, fmt.Errorf("lock product %d: %w", productID, err)
	}
	if p == nil {
		return Reservation{}, &apperr.ItemError{ProductID: productID, Reason: "unknown product"}
	}
	if p.Stock < qty {
		return Reservation{}, &apperr.StockError{
			ProductID: p.ID,
			Name:      p.Name,
			Requested: qty,
			Available: p.Stock,
		}
	}

	if err := tx.AddProductStock(ctx, productID, -qty); err != nil {
		return Reservation{}, fmt.Errorf("reserve product %d: %w", productID, err)
	}
	return Reservation{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: qty}, nil
}

// ReserveAll merges duplicate lines and reserves them in ascending product id,
// so that concurrent requests lock rows in the same order. It stops at the first
// failure; undoing earlier reservations is the caller's rollback.
func (l *Ledger) ReserveAll(ctx context.Context, tx ordertx.ProductStore, lines []domain.OrderLineInput) ([]Reservation, error) {
	merged, err := MergeLines(lines)
	if err != nil {
		return nil, err
	}

	out := make([]Reservation, 0, len(merged))
	for _, ln := range merged {
		r, err := l.Reserve(ctx, tx, ln.ProductID, ln.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Release returns qty units to the product. It is a plain increment: the
// order aggregate makes sure a reservation is released at most once.
func (l *Ledger) Release(ctx context.Context, tx ordertx.ProductStore, productID int64, qty int) error {
	if qty < 1 {
		return nil
	}
	if err := tx.AddProductStock(ctx, productID, qty); err != nil {
		return fmt.Errorf("release product %d: %w", productID, err)
	}
	return nil
}

// MergeLines validates order lines, sums quantities of repeated products and
// sorts the result by product id.
func MergeLines(lines []domain.OrderLineInput) ([]domain.OrderLineInput, error) {
	if len(lines) == 0 {
		return nil, &apperr.ItemError{Reason: "order has no items"}
	}

	byID := make(map[int64]int, len(lines))
	for _, ln := range lines {
		if ln.ProductID <= 0 {
			return nil, &apperr.ItemError{ProductID: ln.ProductID, Reason: "invalid product id"}
		}
		if ln.Quantity < 1 {
			return nil, &apperr.ItemError{ProductID: ln.ProductID, Reason: "quantity must be at least 1"}
		}
		byID[ln.ProductID] += ln.Quantity
	}

	out := make([]domain.OrderLineInput, 0, len(byID))
	for id, qty := range byID {
		out = append(out, domain.OrderLineInput{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
