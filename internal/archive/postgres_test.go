package archive

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsilvagit/deptos/internal/model"
)

func TestInsertQuery(t *testing.T) {
	seen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []model.Listing{
		{ID: "argenprop_1", Source: model.SourceArgenprop, Price: model.Int(450000), Rooms: model.Int(2), URL: "https://a/1"},
		{ID: "zonaprop_2", Source: model.SourceZonaprop, Price: model.Int(300000), Expensas: model.Int(50000), Address: "7 y 45", URL: "https://z/2"},
	}

	query, args := insertQuery(batch, seen)

	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)")
	assert.Contains(t, query, "ON CONFLICT (id) DO NOTHING")
	assert.Equal(t, 1, strings.Count(query, "INSERT INTO listings"))

	require.Len(t, args, 16)
	assert.Equal(t, "argenprop_1", args[0])
	assert.Equal(t, "argenprop", args[1])
	assert.Equal(t, sql.NullInt64{Int64: 450000, Valid: true}, args[2])
	assert.Equal(t, sql.NullInt64{}, args[3])
	assert.Equal(t, seen, args[7])
	assert.Equal(t, sql.NullInt64{Int64: 50000, Valid: true}, args[11])
	assert.Equal(t, "7 y 45", args[13])
}

func TestNullInt(t *testing.T) {
	assert.False(t, nullInt(nil).Valid)
	assert.Equal(t, int64(7), nullInt(model.Int(7)).Int64)
}
