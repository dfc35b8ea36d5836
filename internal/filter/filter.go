package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rsilvagit/deptos/internal/location"
	"github.com/rsilvagit/deptos/internal/model"
)

// ErrInvalidCriteria is returned by Validate.
var ErrInvalidCriteria = errors.New("invalid criteria")

// Criteria holds one user's search limits. Limits are inclusive.
// A nil MinPrice or MaxRooms means "no limit".
type Criteria struct {
	MinPrice    *int `json:"min_price"`
	MaxPrice    int  `json:"max_price"`
	MinRooms    int  `json:"min_rooms"`
	MaxRooms    *int `json:"max_rooms"`
	MaxExpensas int  `json:"max_expensas"`

	// RequireExpensas rejects listings whose fee could not be read. When
	// false, a missing fee passes and only a known fee is compared.
	RequireExpensas bool `json:"require_expensas"`

	// CascoOnly enables the location gate.
	CascoOnly              bool `json:"casco_only"`
	IncludeUnknownLocation bool `json:"include_unknown_location"`

	Active bool `json:"active"`
}

// Defaults returns the criteria a new user starts with.
func Defaults() Criteria {
	return Criteria{
		MinPrice:               model.Int(100000),
		MaxPrice:               500000,
		MinRooms:               1,
		MaxRooms:               model.Int(3),
		MaxExpensas:            100000,
		RequireExpensas:        true,
		CascoOnly:              false,
		IncludeUnknownLocation: true,
		Active:                 true,
	}
}

// Validate checks that the limits are positive and consistent.
func (c Criteria) Validate() error {
	switch {
	case c.MaxPrice <= 0:
		return fmt.Errorf("%w: max_price must be positive", ErrInvalidCriteria)
	case c.MinPrice != nil && *c.MinPrice < 0:
		return fmt.Errorf("%w: min_price must not be negative", ErrInvalidCriteria)
	case c.MinPrice != nil && *c.MinPrice > c.MaxPrice:
		return fmt.Errorf("%w: min_price %d above max_price %d", ErrInvalidCriteria, *c.MinPrice, c.MaxPrice)
	case c.MinRooms < 0:
		return fmt.Errorf("%w: min_rooms must not be negative", ErrInvalidCriteria)
	case c.MaxRooms != nil && *c.MaxRooms < c.MinRooms:
		return fmt.Errorf("%w: max_rooms %d below min_rooms %d", ErrInvalidCriteria, *c.MaxRooms, c.MinRooms)
	case c.MaxExpensas < 0:
		return fmt.Errorf("%w: max_expensas must not be negative", ErrInvalidCriteria)
	}
	return nil
}

// Matches reports whether l satisfies c.
func Matches(l model.Listing, c Criteria) bool {
	if l.Price == nil || l.Rooms == nil {
		return false
	}
	price, rooms := *l.Price, *l.Rooms

	if rooms < c.MinRooms {
		return false
	}
	if c.MaxRooms != nil && rooms > *c.MaxRooms {
		return false
	}
	if c.MinPrice != nil && price < *c.MinPrice {
		return false
	}
	if price > c.MaxPrice {
		return false
	}
	if l.Expensas == nil && c.RequireExpensas {
		return false
	}
	if l.Expensas != nil && *l.Expensas > c.MaxExpensas {
		return false
	}
	if c.CascoOnly && !location.Include(l, c.IncludeUnknownLocation) {
		return false
	}
	return true
}

// Apply returns the listings that match c, in order.
func Apply(listings []model.Listing, c Criteria) []model.Listing {
	var result []model.Listing
	for _, l := range listings {
		if Matches(l, c) {
			result = append(result, l)
		}
	}
	return result
}

// Describe renders c for a chat message.
func (c Criteria) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Precio: %s - $%d\n", optional(c.MinPrice, "$", "sin mínimo"), c.MaxPrice)
	fmt.Fprintf(&b, "Ambientes: %d - %s\n", c.MinRooms, optional(c.MaxRooms, "", "sin máximo"))
	fmt.Fprintf(&b, "Expensas máx.: $%d", c.MaxExpensas)
	if c.RequireExpensas {
		b.WriteString(" (se exigen expensas publicadas)")
	}
	if c.CascoOnly {
		b.WriteString("\nSolo casco urbano")
		if !c.IncludeUnknownLocation {
			b.WriteString(" (se descartan direcciones dudosas)")
		}
	}
	if !c.Active {
		b.WriteString("\nNotificaciones pausadas")
	}
	return b.String()
}

func optional(v *int, prefix, none string) string {
	if v == nil {
		return none
	}
	return fmt.Sprintf("%s%d", prefix, *v)
}
