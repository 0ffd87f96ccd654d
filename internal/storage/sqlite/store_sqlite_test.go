package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SQLiteStoreSuite struct {
	suite.Suite
	path  string
	store *Store
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "nested", "nomad.db")
	store, err := Open(context.Background(), s.path)
	s.Require().NoError(err)
	s.store = store
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *SQLiteStoreSuite) TestMissingKey() {
	doc, err := s.store.Load(context.Background(), "previousLocation")
	s.Require().NoError(err)
	s.Nil(doc)
}

func (s *SQLiteStoreSuite) TestUpsert() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "subscription", []byte(`{"tier":"free"}`)))
	s.Require().NoError(s.store.Save(ctx, "subscription", []byte(`{"tier":"premium"}`)))

	doc, err := s.store.Load(ctx, "subscription")
	s.Require().NoError(err)
	s.JSONEq(`{"tier":"premium"}`, string(doc))
}

// Documents must survive a restart of the process.
func (s *SQLiteStoreSuite) TestDurableAcrossReopen() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "travelCountries", []byte(`[{"code":"PT"}]`)))
	s.Require().NoError(s.store.Close())

	reopened, err := Open(ctx, s.path)
	s.Require().NoError(err)
	s.store = reopened

	doc, err := reopened.Load(ctx, "travelCountries")
	s.Require().NoError(err)
	s.JSONEq(`[{"code":"PT"}]`, string(doc))
}
