// Package storetest holds the behaviour every storage.Store must share.
package storetest

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/arena-auth/internal/model"
	"github.com/mcoot/arena-auth/internal/storage"
)

// StoreSuite runs against the store returned by NewStore for each test
type StoreSuite struct {
	suite.Suite
	NewStore func() storage.Store

	Store storage.Store
	Ctx   context.Context
}

func (s *StoreSuite) SetupTest() {
	s.Store = s.NewStore()
	s.Ctx = context.Background()
}

func (s *StoreSuite) TestSetAndGet() {
	err := s.Store.Set(s.Ctx, "greeting", []byte("hello"))
	s.Require().NoError(err)

	value, err := s.Store.Get(s.Ctx, "greeting")
	s.Require().NoError(err)
	s.Equal("hello", string(value))
}

func (s *StoreSuite) TestGetNotFound() {
	_, err := s.Store.Get(s.Ctx, "missing")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestSetOverwrites() {
	s.Require().NoError(s.Store.Set(s.Ctx, "k", []byte("one")))
	s.Require().NoError(s.Store.Set(s.Ctx, "k", []byte("two")))

	value, err := s.Store.Get(s.Ctx, "k")
	s.Require().NoError(err)
	s.Equal("two", string(value))
}

func (s *StoreSuite) TestDelete() {
	s.Require().NoError(s.Store.Set(s.Ctx, "k", []byte("v")))
	s.Require().NoError(s.Store.Delete(s.Ctx, "k"))

	_, err := s.Store.Get(s.Ctx, "k")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestDeleteMissingIsNoop() {
	s.NoError(s.Store.Delete(s.Ctx, "never-set"))
}

func (s *StoreSuite) TestKeysAreIndependent() {
	s.Require().NoError(s.Store.Set(s.Ctx, "a", []byte("1")))
	s.Require().NoError(s.Store.Set(s.Ctx, "b", []byte("2")))
	s.Require().NoError(s.Store.Delete(s.Ctx, "a"))

	value, err := s.Store.Get(s.Ctx, "b")
	s.Require().NoError(err)
	s.Equal("2", string(value))
}

func (s *StoreSuite) TestIdentityCacheRoundTrip() {
	cache := storage.NewIdentityCache(s.Store)

	identity, err := cache.Load(s.Ctx)
	s.Require().NoError(err)
	s.Nil(identity)

	want := &model.Identity{
		ID:      "user-1",
		Email:   "ada@example.com",
		Name:    "Ada Lovelace",
		Role:    model.RolePlayer,
		Profile: &model.Profile{Username: "ada", FullName: "Ada Lovelace", Rating: 1000},
	}
	s.Require().NoError(cache.Save(s.Ctx, want))

	got, err := cache.Load(s.Ctx)
	s.Require().NoError(err)
	s.Equal(want, got)

	s.Require().NoError(cache.Clear(s.Ctx))
	got, err = cache.Load(s.Ctx)
	s.Require().NoError(err)
	s.Nil(got)
}
