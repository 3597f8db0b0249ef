package order

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	addressMinLen = 2
	addressMaxLen = 20
)

// LineRequest is one requested (product, units) pair.
type LineRequest struct {
	ProductID int64
	Units     int
}

// Validate checks a placement request and returns every violation found. It has no
// side effects and runs before any inventory call.
func Validate(in PlaceOrderInput) []FieldError {
	var errs []FieldError

	if !validEmail(in.CustomerEmail) {
		errs = append(errs, FieldError{Field: "customerEmail", Message: "Please provide a valid email address"})
	}

	n := utf8.RuneCountInString(strings.TrimSpace(in.CustomerAddress))
	if n < addressMinLen || n > addressMaxLen {
		errs = append(errs, FieldError{Field: "customerAddress", Message: "Address must be between 2 and 20 characters"})
	}

	if len(in.Lines) == 0 {
		errs = append(errs, FieldError{Field: "productList", Message: "At least one product is required"})
	}
	for i, l := range in.Lines {
		if l.ProductID <= 0 {
			errs = append(errs, FieldError{Field: fieldIndex("productList", i, "id"), Message: "Product id must be positive"})
		}
		if l.Units <= 0 {
			errs = append(errs, FieldError{Field: fieldIndex("productList", i, "unit"), Message: "Unit must be greater than zero"})
		}
	}

	return errs
}

func validEmail(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1
}

func fieldIndex(field string, i int, sub string) string {
	return fmt.Sprintf("%s[%d].%s", field, i, sub)
}
