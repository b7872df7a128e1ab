package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/arena-auth/internal/storage"
	"github.com/mcoot/arena-auth/internal/storage/storetest"
)

func TestStorageSuite(t *testing.T) {
	suite.Run(t, &storetest.StoreSuite{
		NewStore: func() storage.Store { return New() },
	})
}

func TestStorageCopiesValues(t *testing.T) {
	s := New()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[0] = 'y'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Len())
}
