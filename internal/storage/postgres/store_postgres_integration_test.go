//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"supernomad/internal/storage/postgres"
	"supernomad/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(context.Background(), `TRUNCATE kv_store`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestMissingKey() {
	doc, err := s.store.Load(context.Background(), "previousLocation")
	s.Require().NoError(err)
	s.Nil(doc)
}

func (s *PostgresStoreSuite) TestUpsert() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, "travelCountries", []byte(`[{"code":"TH","days_spent":3}]`)))
	s.Require().NoError(s.store.Save(ctx, "travelCountries", []byte(`[{"code":"TH","days_spent":4}]`)))

	doc, err := s.store.Load(ctx, "travelCountries")
	s.Require().NoError(err)
	s.JSONEq(`[{"code":"TH","days_spent":4}]`, string(doc))
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.NoError(s.store.Migrate(context.Background()))
}
