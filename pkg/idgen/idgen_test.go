package idgen

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsMonotonic(t *testing.T) {
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	ids := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		ids = append(ids, NewAt(at))
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.Equal(t, at, Time(ids[0]))
}

func TestParse(t *testing.T) {
	id := New()
	parsed, err := Parse("  " + id + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.True(t, Valid(id))

	_, err = Parse("not-a-ulid")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.False(t, Valid(""))
	assert.True(t, Time("bogus").IsZero())
}
