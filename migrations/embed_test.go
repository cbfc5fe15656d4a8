package migrations

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrdered(t *testing.T) {
	files, err := Ordered()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	names := make([]string, 0, len(files))
	for _, f := range files {
		assert.NotEmpty(t, f.SQL, "migration %s is empty", f.Name)
		names = append(names, f.Name)
	}
	assert.True(t, sort.StringsAreSorted(names), "migrations must apply in name order")
}

func TestOrdered_InitialSchema(t *testing.T) {
	files, err := Ordered()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	first := files[0]
	assert.Equal(t, "0001_init.sql", first.Name)
	assert.Contains(t, first.SQL, "CREATE TABLE IF NOT EXISTS feed_requests")
	assert.Contains(t, first.SQL, "CREATE TABLE IF NOT EXISTS earthquake_events")
	assert.Contains(t, first.SQL, "CREATE TABLE IF NOT EXISTS processed_earthquakes")
	assert.Contains(t, first.SQL, "earthquake_global_id        TEXT NOT NULL UNIQUE")
}
