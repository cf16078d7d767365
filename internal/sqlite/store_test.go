package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

const itemsDDL = `CREATE TABLE items (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	active BOOLEAN DEFAULT 1,
	price REAL
)`

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := OpenDataDir(context.Background(), t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.Exec(context.Background(), itemsDDL)
	require.NoError(t, err)
	return s
}

func TestOpenDataDirCreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := OpenDataDir(context.Background(), dir, Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, DBFileName))
	assert.NoError(t, err)
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		always bool
		want   string
	}{
		{name: "always quoted", in: "items", always: true, want: `"items"`},
		{name: "schema qualified", in: "main.items", always: true, want: `"main"."items"`},
		{name: "bare when safe", in: "items", want: `items`},
		{name: "space forces quoting", in: "line items", want: `"line items"`},
		{name: "embedded quote doubled", in: `a"b`, always: true, want: `"a""b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteIdentifier(tt.in, tt.always))
		})
	}
}

func TestColumnMetadata(t *testing.T) {
	s := openTestStore(t, Options{})

	tests := []struct {
		name  string
		table string
		check func(t *testing.T, cols []types.ColumnInfo)
	}{
		{
			name:  "unqualified table",
			table: "items",
			check: func(t *testing.T, cols []types.ColumnInfo) {
				require.Len(t, cols, 4)
				assert.Equal(t, "id", cols[0].Name)
				assert.Equal(t, 1, cols[0].PrimaryKey)
				assert.Equal(t, "name", cols[1].Name)
				assert.False(t, cols[1].Nullable)
				assert.True(t, cols[2].IsBoolean())
				require.NotNil(t, cols[2].Default)
				assert.Equal(t, "1", *cols[2].Default)
				assert.Nil(t, cols[3].Default)
				assert.True(t, cols[3].Nullable)
			},
		},
		{
			name:  "schema qualified",
			table: "main.items",
			check: func(t *testing.T, cols []types.ColumnInfo) {
				assert.Len(t, cols, 4)
			},
		},
		{
			name:  "missing table",
			table: "nope",
			check: func(t *testing.T, cols []types.ColumnInfo) {
				assert.Empty(t, cols)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := s.ColumnMetadata(context.Background(), tt.table)
			require.NoError(t, err)
			tt.check(t, cols)
		})
	}
}

func TestNextSequenceID(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := s.NextSequenceID(ctx, "items_seq")
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	other, err := s.NextSequenceID(ctx, "orders_seq")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "sequences count independently")
}

func TestNextSequenceIDRetriesAfterCancel(t *testing.T) {
	s := openTestStore(t, Options{})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.NextSequenceID(cancelled, "items_seq")
	require.ErrorIs(t, err, context.Canceled)

	id, err := s.NextSequenceID(context.Background(), "items_seq")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestLastInsertID(t *testing.T) {
	s := openTestStore(t, Options{DisableReturning: true})
	ctx := context.Background()

	_, err := s.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "a")
	require.NoError(t, err)
	_, err = s.Exec(ctx, `INSERT INTO items (name) VALUES (?)`, "b")
	require.NoError(t, err)

	id, err := s.LastInsertID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestCapabilities(t *testing.T) {
	s := openTestStore(t, Options{})
	assert.True(t, s.SupportsParameterStyle(types.ParamPositional))
	assert.True(t, s.SupportsParameterStyle(types.ParamNamed))
	assert.True(t, types.CanReturnInsert(s))
	assert.True(t, types.CanReturnUpdate(s))

	legacy := openTestStore(t, Options{DisableReturning: true})
	assert.False(t, types.CanReturnInsert(legacy))
	assert.False(t, types.CanReturnUpdate(legacy))
}

func TestNamedParametersBind(t *testing.T) {
	s := openTestStore(t, Options{})
	ctx := context.Background()

	_, err := s.Exec(ctx, `INSERT INTO items (name, price) VALUES (:c0_0, :c0_1)`,
		sql.Named("c0_0", "widget"), sql.Named("c0_1", 2.5))
	require.NoError(t, err)

	rows, err := s.Query(ctx, `SELECT name, price FROM items`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	name, _ := rows[0].Get("name")
	assert.Equal(t, "widget", name)
}
