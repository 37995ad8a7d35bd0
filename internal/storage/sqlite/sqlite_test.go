package sqlite

import (
	"context"
	"testing"

	"github.com/dekarrin/campman/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Store_RoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	st, err := New(dir)
	require.NoError(t, err)

	_, err = st.Get(ctx, "token")
	assert.ErrorIs(err, storage.ErrNotFound)

	assert.NoError(st.Set(ctx, "token", "header.payload.sig"))
	assert.NoError(st.Set(ctx, "token", "second.value.sig"))
	require.NoError(t, st.Close())

	// reopening must see what was written before
	st, err = New(dir)
	require.NoError(t, err)
	defer st.Close()

	v, err := st.Get(ctx, "token")
	assert.NoError(err)
	assert.Equal("second.value.sig", v)

	assert.NoError(st.Remove(ctx, "token"))
	_, err = st.Get(ctx, "token")
	assert.ErrorIs(err, storage.ErrNotFound)
}

func Test_record_Binary(t *testing.T) {
	assert := assert.New(t)

	rec := record{Value: "ünïcode value"}
	data, err := rec.MarshalBinary()
	assert.NoError(err)

	var actual record
	assert.NoError(actual.UnmarshalBinary(data))
	assert.Equal(rec.Value, actual.Value)
	assert.Equal(rec.Written.Unix(), actual.Written.Unix())
}
