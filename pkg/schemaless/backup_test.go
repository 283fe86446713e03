package schemaless

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestDB(t)
	users, err := src.KeySpace("users", NewIndex("user", "$.location.state"))
	require.NoError(t, err)
	pets, err := src.KeySpace("pets")
	require.NoError(t, err)

	k1, err := users.CreateRow(map[string]domain.Document{"user": stateDoc("a", "KS"), "bio": "hi"})
	require.NoError(t, err)
	k2, err := users.CreateRow(map[string]domain.Document{"user": stateDoc("b", "MO")})
	require.NoError(t, err)
	_, err = pets.CreateRow(map[string]domain.Document{"name": "rex"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := newTestDB(t)
	require.NoError(t, dst.Import(&buf))

	// Keyspaces joined the registry with their definitions.
	assert.ElementsMatch(t, []string{"users", "pets"}, dst.KeySpaceNames())

	usersDst, err := dst.KeySpace("users", NewIndex("user", "$.location.state"))
	require.NoError(t, err)

	row, err := usersDst.Row(k1)
	require.NoError(t, err)
	assert.Equal(t, "hi", row.Columns["bio"])
	assert.Equal(t, stateDoc("a", "KS"), row.Columns["user"])

	// Indexes were rebuilt from the restored rows.
	stateIdx, err := usersDst.Index("user", "$.location.state")
	require.NoError(t, err)
	keys, err := stateIdx.Query("MO")
	require.NoError(t, err)
	assert.Equal(t, []int64{k2}, keys)

	// Row key allocation continues past the imported counter.
	next, err := usersDst.CreateRow(map[string]domain.Document{"user": stateDoc("c", "CA")})
	require.NoError(t, err)
	assert.Equal(t, k2+1, next)
}

func TestImportRequiresEmptyDatabase(t *testing.T) {
	src := newTestDB(t)
	users, err := src.KeySpace("users")
	require.NoError(t, err)
	_, err = users.CreateRow(map[string]domain.Document{"name": "carol"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := newTestDB(t)
	_, err = dst.KeySpace("pets")
	require.NoError(t, err)

	err = dst.Import(&buf)
	assert.ErrorContains(t, err, "empty database")

	// The populated database was left untouched.
	assert.Equal(t, []string{"pets"}, dst.KeySpaceNames())
}

func TestImportRejectsGarbage(t *testing.T) {
	db := newTestDB(t)

	err := db.Import(bytes.NewReader([]byte("not a snapshot")))
	assert.Error(t, err)
}

func TestExportEmptyDatabase(t *testing.T) {
	src := newTestDB(t)

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := newTestDB(t)
	require.NoError(t, dst.Import(&buf))
	assert.Empty(t, dst.KeySpaceNames())
}
