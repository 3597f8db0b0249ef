package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrInvalidProduct    = errors.New("inventory: invalid product")
	ErrConflict          = errors.New("inventory: product id already exists")
	// ErrUnavailable marks a failed or timed out call to the inventory service.
	ErrUnavailable = errors.New("inventory: service unavailable")
)

// Product is the stock-bearing catalogue entry. AvailableQuantity never goes negative.
type Product struct {
	ID                int64
	Code              string
	Name              string
	Description       string
	Category          string
	Brand             string
	Price             int64
	AvailableQuantity int
	UpdatedAt         time.Time
}

// NotFoundError carries the id of the missing product.
func NotFoundError(id int64) error {
	return fmt.Errorf("%w: Product not found with id: %d", ErrNotFound, id)
}

func (p *Product) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalidProduct)
	case p.Price < 0:
		return fmt.Errorf("%w: price must be zero or greater", ErrInvalidProduct)
	case p.AvailableQuantity < 0:
		return fmt.Errorf("%w: available quantity must be zero or greater", ErrInvalidProduct)
	}
	return nil
}

// Reserve decrements stock and returns the remaining quantity.
func (p *Product) Reserve(units int) (int, error) {
	if units <= 0 {
		return p.AvailableQuantity, ErrInvalidQuantity
	}
	if units > p.AvailableQuantity {
		return p.AvailableQuantity, ErrInsufficientStock
	}
	p.AvailableQuantity -= units
	p.touch()
	return p.AvailableQuantity, nil
}

// Release returns units to stock and reports the new quantity.
func (p *Product) Release(units int) (int, error) {
	if units <= 0 {
		return p.AvailableQuantity, ErrInvalidQuantity
	}
	p.AvailableQuantity += units
	p.touch()
	return p.AvailableQuantity, nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
