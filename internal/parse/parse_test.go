package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestPriceAndExpensas(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantPrice    *int
		wantExpensas *int
	}{
		{"price plus fee", "$510.000+ $70.000 expensas", intp(510000), intp(70000)},
		{"price plus fee with newline", "$ 320.000\n+ $ 45.000 expensas", intp(320000), intp(45000)},
		{"price only", "$450.000", intp(450000), nil},
		{"price with spaces", "$ 450.000", intp(450000), nil},
		{"fee label after price", "$300.000  Expensas : $80000", intp(300000), intp(80000)},
		{"two numbers before label", "$ 280.000 $ 35.000 expensas", intp(280000), intp(35000)},
		{"fee only", "Expensas: $80.000", nil, intp(80000)},
		{"consultar with fee", "Consultar Expensas : $80.000", nil, intp(80000)},
		{"fee only spaced", "Expensas $ 50.000", nil, intp(50000)},
		{"label without amounts", "Consultar expensas", nil, nil},
		{"empty", "", nil, nil},
		{"whitespace", "   \n ", nil, nil},
		{"no digits", "contact for price", nil, nil},
		{"consultar", "Consultar precio", nil, nil},
		{"usd", "USD 500", nil, nil},
		{"u$s", "U$S 450 + $ 30.000 expensas", nil, nil},
		{"us$ lowercase", "us$ 600", nil, nil},
		{"only dots", "$ ...", nil, nil},
		{"overflow", "$999999999999999999999999", nil, nil},
		{"overflow fee", "$400.000 + $999999999999999999999999 expensas", intp(400000), nil},
		{"non ascii junk", "¡¿ñ€ 🏠", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, expensas := PriceAndExpensas(tt.text)
			assert.Equal(t, tt.wantPrice, price)
			assert.Equal(t, tt.wantExpensas, expensas)
		})
	}
}

func TestExpensas(t *testing.T) {
	tests := []struct {
		text string
		want *int
	}{
		{"Expensas: $80.000", intp(80000)},
		{"expensas $ 15.500", intp(15500)},
		{"$ 50.000 Expensas", intp(50000)},
		{"Departamento 2 amb Expensas : $80000 luminoso", intp(80000)},
		{"$510.000+ $70.000 expensas 2 amb", intp(70000)},
		{"sin expensas", nil},
		{"expensas 2 amb", nil},
		{"", nil},
		{"2 ambientes, balcón", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Expensas(tt.text), "Expensas(%q)", tt.text)
	}
}

func TestRooms(t *testing.T) {
	tests := []struct {
		text string
		want *int
	}{
		{"2 amb", intp(2)},
		{"3 ambientes", intp(3)},
		{"2AMB", intp(2)},
		{"1 dormitorio", intp(2)},
		{"3 dorms", intp(4)},
		{"2 Dormitorios", intp(3)},
		{"Monoambiente", intp(1)},
		{"mono ambiente al frente", intp(1)},
		{"45 m² · 2 dorm · 3 amb", intp(3)},
		{"luminoso, balcón", nil},
		{"", nil},
		{"99999999999999999999999 amb", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Rooms(tt.text), "Rooms(%q)", tt.text)
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Departamento en 40 e/ 14 y 15, La Plata", "40 e/ 14 y 15"},
		{"45 entre 7 y 8", "45 entre 7 y 8"},
		{"Esquina 7 y 45", "7 y 45"},
		{"calle 7 n 456, La Plata", "calle 7 n 456"},
		{"Av. 44 1234, centro", "Av. 44 1234"},
		{"Barrio Norte", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Address(tt.text), "Address(%q)", tt.text)
	}
}

func TestAddressTruncates(t *testing.T) {
	long := "calle 7 numero mil doscientos treinta y cuatro piso diez departamento be"
	got := Address(long)
	assert.LessOrEqual(t, len([]rune(got)), maxAddressLen)
}

func TestInt(t *testing.T) {
	assert.Equal(t, intp(450000), Int("450.000"))
	assert.Equal(t, intp(12), Int("Desde 12"))
	assert.Nil(t, Int("sin precio"))
}
