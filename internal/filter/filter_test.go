package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsilvagit/deptos/internal/model"
)

func listing(id string, price, rooms, expensas *int) model.Listing {
	return model.Listing{ID: id, Price: price, Rooms: rooms, Expensas: expensas, Source: model.SourceArgenprop}
}

func scenarioCriteria() Criteria {
	return Criteria{
		MaxPrice:        600000,
		MinRooms:        2,
		MaxExpensas:     100000,
		RequireExpensas: true,
		Active:          true,
	}
}

func TestMatchesScenario(t *testing.T) {
	listings := []model.Listing{
		listing("L1", model.Int(450000), model.Int(2), model.Int(70000)),
		listing("L2", model.Int(800000), model.Int(3), model.Int(90000)),
		listing("L3", model.Int(500000), model.Int(1), model.Int(60000)),
		listing("L4", model.Int(550000), model.Int(3), model.Int(150000)),
		listing("L5", model.Int(480000), model.Int(2), model.Int(85000)),
	}

	got := Apply(listings, scenarioCriteria())
	require.Len(t, got, 2)
	assert.Equal(t, "L1", got[0].ID)
	assert.Equal(t, "L5", got[1].ID)
}

func TestMatchesRequiresPriceAndRooms(t *testing.T) {
	c := scenarioCriteria()
	c.RequireExpensas = false

	assert.False(t, Matches(listing("a", nil, model.Int(2), model.Int(1)), c))
	assert.False(t, Matches(listing("b", model.Int(1), nil, model.Int(1)), c))
	assert.False(t, Matches(listing("c", nil, nil, nil), c))
}

func TestMatchesBoundariesInclusive(t *testing.T) {
	c := Criteria{
		MinPrice:    model.Int(100000),
		MaxPrice:    500000,
		MinRooms:    2,
		MaxRooms:    model.Int(3),
		MaxExpensas: 100000,
		Active:      true,
	}

	tests := []struct {
		name string
		l    model.Listing
		want bool
	}{
		{"at max price", listing("1", model.Int(500000), model.Int(2), model.Int(1)), true},
		{"above max price", listing("2", model.Int(500001), model.Int(2), model.Int(1)), false},
		{"at min price", listing("3", model.Int(100000), model.Int(2), model.Int(1)), true},
		{"below min price", listing("4", model.Int(99999), model.Int(2), model.Int(1)), false},
		{"at min rooms", listing("5", model.Int(200000), model.Int(2), model.Int(1)), true},
		{"below min rooms", listing("6", model.Int(200000), model.Int(1), model.Int(1)), false},
		{"at max rooms", listing("7", model.Int(200000), model.Int(3), model.Int(1)), true},
		{"above max rooms", listing("8", model.Int(200000), model.Int(4), model.Int(1)), false},
		{"at max expensas", listing("9", model.Int(200000), model.Int(2), model.Int(100000)), true},
		{"above max expensas", listing("10", model.Int(200000), model.Int(2), model.Int(100001)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.l, c))
		})
	}
}

func TestMatchesMissingExpensasPolicy(t *testing.T) {
	noFee := listing("x", model.Int(300000), model.Int(2), nil)
	highFee := listing("y", model.Int(300000), model.Int(2), model.Int(200000))

	strict := scenarioCriteria()
	strict.RequireExpensas = true
	assert.False(t, Matches(noFee, strict))
	assert.False(t, Matches(highFee, strict))

	lenient := scenarioCriteria()
	lenient.RequireExpensas = false
	assert.True(t, Matches(noFee, lenient))
	assert.False(t, Matches(highFee, lenient))
}

func TestMatchesLocationGate(t *testing.T) {
	c := scenarioCriteria()
	c.CascoOnly = true
	c.IncludeUnknownLocation = true

	base := listing("z", model.Int(300000), model.Int(2), model.Int(50000))

	inside := base
	inside.Address = "40 e/ 14 y 15"
	outside := base
	outside.Address = "City Bell"
	unknown := base

	assert.True(t, Matches(inside, c))
	assert.False(t, Matches(outside, c))
	assert.True(t, Matches(unknown, c))

	c.IncludeUnknownLocation = false
	assert.False(t, Matches(unknown, c))

	c.CascoOnly = false
	assert.True(t, Matches(outside, c))
}

func TestDefaultsValid(t *testing.T) {
	d := Defaults()
	require.NoError(t, d.Validate())
	assert.Equal(t, 500000, d.MaxPrice)
	assert.True(t, d.RequireExpensas)
	assert.True(t, d.IncludeUnknownLocation)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Criteria)
	}{
		{"zero max price", func(c *Criteria) { c.MaxPrice = 0 }},
		{"min above max price", func(c *Criteria) { c.MinPrice = model.Int(900000) }},
		{"negative min rooms", func(c *Criteria) { c.MinRooms = -1 }},
		{"max rooms below min", func(c *Criteria) { c.MinRooms = 4 }},
		{"negative expensas", func(c *Criteria) { c.MaxExpensas = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Defaults()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidCriteria)
		})
	}
}

func TestDescribe(t *testing.T) {
	out := Defaults().Describe()
	assert.Contains(t, out, "Precio: $100000 - $500000")
	assert.Contains(t, out, "Ambientes: 1 - 3")
	assert.Contains(t, out, "Expensas máx.: $100000")

	c := scenarioCriteria()
	c.Active = false
	out = c.Describe()
	assert.Contains(t, out, "sin mínimo")
	assert.Contains(t, out, "sin máximo")
	assert.Contains(t, out, "pausadas")
}
