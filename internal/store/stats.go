package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SumOrderTotals sums total_amount over orders created inside the window.
// A nil bound leaves that side of the window open.
func (s *Store) SumOrderTotals(ctx context.Context, from, to *time.Time) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE 1=1"
	args := []interface{}{}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, query, args...)
	return total, err
}

// CountOrders counts orders, optionally by status and creation window
func (s *Store) CountOrders(ctx context.Context, status string, from, to *time.Time) (int, error) {
	query := "SELECT COUNT(*) FROM orders WHERE 1=1"
	args := []interface{}{}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var count int
	err := s.db.GetContext(ctx, &count, query, args...)
	return count, err
}

// CountProducts counts all catalog products
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM products")
	return count, err
}
