package location

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rsilvagit/deptos/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		address string
		want    Verdict
	}{
		{"45 e/ 7 y 8", Inside},
		{"Calle 7 entre 45 y 46", Inside},
		{"Diagonal 74 n 1500", Inside},
		{"7 y 45", Inside},
		{"Casco urbano, La Plata", Inside},
		{"Casco céntrico", Inside},
		{"City Bell, calle 7", Outside},
		{"Camino Centenario, Gonnet", Outside},
		{"Villa Elvira 7 y 610", Outside},
		{"Arturo Seguí", Outside},
		{"calle 90", Unknown},
		{"Calle 122 y 95", Unknown},
		{"calle 90 n 1234", Unknown},
		{"Barrio Norte", Unknown},
		{"Piso 5 dto 3", Unknown},
		{"", Unknown},
		{"   ", Unknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.address), "Classify(%q)", tt.address)
	}
}

func TestStreetNumbers(t *testing.T) {
	assert.Equal(t, []int{7, 73}, StreetNumbers("Diagonal 73 y calle 7"))
	assert.Equal(t, []int{44}, StreetNumbers("Av. 44 N° 123, piso 3"))
	assert.Equal(t, []int{45, 7, 8}, StreetNumbers("45 e/ 7 y 8"))
	assert.Equal(t, []int{12}, StreetNumbers("calle 12 depto 4"))
	assert.Empty(t, StreetNumbers("calle 0"))
	assert.Empty(t, StreetNumbers("calle 90 y 95"))
	assert.Equal(t, []int{80}, StreetNumbers("diagonal 80 y 81"))
	assert.Empty(t, StreetNumbers(""))
}

func TestInclude(t *testing.T) {
	inside := model.Listing{Address: "40 e/ 14 y 15"}
	outside := model.Listing{Address: "Los Hornos"}
	unknown := model.Listing{Address: ""}

	assert.True(t, Include(inside, false))
	assert.False(t, Include(outside, true))
	assert.True(t, Include(unknown, true))
	assert.False(t, Include(unknown, false))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "inside", Inside.String())
	assert.Equal(t, "outside", Outside.String())
	assert.Equal(t, "unknown", Unknown.String())
}
