package service

import "fmt"

// NotFoundError indicates a referenced entity does not exist
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

// InvalidRequestError indicates the caller sent a request that can never succeed
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// InsufficientStockError indicates a product cannot cover the requested quantity.
// It carries enough context for the caller to build a user-facing message.
type InsufficientStockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: available=%d, requested=%d",
		e.Name, e.Available, e.Requested)
}
