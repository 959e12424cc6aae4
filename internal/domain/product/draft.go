package product

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Field names a Draft input.
type Field string

const (
	FieldName     Field = "name"
	FieldPrice    Field = "price"
	FieldCategory Field = "category"
)

// Draft is the in-progress form representation of a Product. Price is kept
// as the raw text the user typed.
type Draft struct {
	// ID is nil for products that have not been created yet.
	ID       *int64
	Name     string
	Price    string
	Category string
}

// DraftFrom seeds a Draft for editing an existing product.
func DraftFrom(p Product) Draft {
	id := p.ID
	return Draft{
		ID:       &id,
		Name:     p.Name,
		Price:    p.Price.String(),
		Category: p.Category,
	}
}

// Set updates a single field of the draft.
func (d *Draft) Set(f Field, value string) {
	switch f {
	case FieldName:
		d.Name = value
	case FieldPrice:
		d.Price = value
	case FieldCategory:
		d.Category = value
	}
}

// IsZero reports whether the draft is empty.
func (d Draft) IsZero() bool {
	return d.ID == nil && d.Name == "" && d.Price == "" && d.Category == ""
}

// ValidationError is a client-side form check failure. It never reaches the
// network.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the draft and returns the first failing rule in form order:
// name, category, price.
func Validate(d Draft) error {
	if strings.TrimSpace(d.Name) == "" {
		return &ValidationError{Field: FieldName, Message: "name is required"}
	}
	if strings.TrimSpace(d.Category) == "" {
		return &ValidationError{Field: FieldCategory, Message: "category is required"}
	}
	if _, err := ParsePrice(d.Price); err != nil {
		return err
	}
	return nil
}

// ParsePrice parses a user-entered price. The result is strictly positive.
func ParsePrice(s string) (decimal.Decimal, error) {
	invalid := &ValidationError{Field: FieldPrice, Message: "price must be a positive number"}

	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalid
	}
	price, err := decimal.NewFromString(s)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, invalid
	}
	return price, nil
}

// Product converts a validated draft into the record sent to the API. New
// products carry ID 0.
func (d Draft) Product() (Product, error) {
	if err := Validate(d); err != nil {
		return Product{}, err
	}
	price, err := ParsePrice(d.Price)
	if err != nil {
		return Product{}, err
	}
	p := Product{
		Name:     d.Name,
		Price:    price,
		Category: d.Category,
	}
	if d.ID != nil {
		p.ID = *d.ID
	}
	return p, nil
}
