package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Error-path tests use sqlmock so storage failures can be injected; the
// store must propagate them unchanged rather than masking or retrying.

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, nil), mock
}

func TestProteinsBySymbols_QueryErrorPropagates(t *testing.T) {
	s, mock := newMockStore(t)

	dbErr := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT p.id, p.hgnc_symbol, pp.pathway_id").
		WithArgs("HGNC:0").
		WillReturnError(dbErr)

	_, err := s.ProteinsBySymbols(context.Background(), []string{"HGNC:0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPathwayByID_QueryErrorPropagates(t *testing.T) {
	s, mock := newMockStore(t)

	dbErr := errors.New("database is locked")
	mock.ExpectQuery("SELECT resource_id, name, url FROM pathways").
		WithArgs("B1").
		WillReturnError(dbErr)

	_, err := s.PathwayByID(context.Background(), "B1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPathways_QueryErrorPropagates(t *testing.T) {
	s, mock := newMockStore(t)

	dbErr := errors.New("database is locked")
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM pathways").WillReturnError(dbErr)

	_, err := s.CountPathways(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestLoadGeneSets_RollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)

	dbErr := errors.New("constraint failed")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO pathways").
		WithArgs("B1", "Pathway 0", "https://example.org/pathway/B1").
		WillReturnError(dbErr)
	mock.ExpectRollback()

	err := s.LoadGeneSets(context.Background(), fixtureRecords()[:1])
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
