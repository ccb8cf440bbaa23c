package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

type testDoc struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestGetDecodesDocument(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, data\s+FROM documents\s+WHERE collection = \$1 AND id = \$2`).
		WithArgs("users", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("u1", []byte(`{"name":"alice","count":3}`)))

	docs := NewPostgresDocuments(mock)
	doc, err := docs.Get(context.Background(), "users", "u1")
	require.NoError(t, err)

	var out testDoc
	require.NoError(t, doc.Decode(&out))
	assert.Equal(t, testDoc{ID: "u1", Name: "alice", Count: 3}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingDocument(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, data`).
		WithArgs("users", "ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))

	_, err := NewPostgresDocuments(mock).Get(context.Background(), "users", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryPrefixRangeOrdered(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection = \$1 AND \(data #>> \$2::text\[\]\) COLLATE "C" >= \$3 AND \(data #>> \$4::text\[\]\) COLLATE "C" <= \$5 ORDER BY \(data #>> \$6::text\[\]\) COLLATE "C" DESC LIMIT \$7`).
		WithArgs("photos", []string{"caption"}, "sun", []string{"caption"}, "sun"+HighSentinel, []string{"createdAt"}, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("p2", []byte(`{"caption":"sunrise"}`)).
			AddRow("p1", []byte(`{"caption":"sunset"}`)))

	q := Query{
		Filters:    PrefixRange("caption", "sun"),
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      10,
	}
	docs, err := NewPostgresDocuments(mock).Query(context.Background(), "photos", q)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p2", docs[0].ID)
	assert.Equal(t, "p1", docs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRejectsUnknownOperator(t *testing.T) {
	mock := newMock(t)
	_, err := NewPostgresDocuments(mock).Query(context.Background(), "photos", Query{
		Filters: []Filter{{Field: "likes", Op: ">", Value: "1"}},
	})
	assert.Error(t, err)
}

func TestCreateGeneratesID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("photos", pgxmock.AnyArg(), `{"name":"x","count":0,"id":""}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// field order follows the struct below
	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
		ID    string `json:"id"`
	}
	id, err := NewPostgresDocuments(mock).Create(context.Background(), "photos", doc{Name: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetUpserts(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`(?s)INSERT INTO documents.*ON CONFLICT \(collection, id\) DO UPDATE`).
		WithArgs("users", "u1", `{"id":"u1","name":"alice","count":0}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := NewPostgresDocuments(mock).Set(context.Background(), "users", "u1", testDoc{ID: "u1", Name: "alice"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateIncrementAndUnion(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents SET data = jsonb_set\(jsonb_set\(data, \$3::text\[\], to_jsonb\(COALESCE\(\(data #>> \$3::text\[\]\)::numeric, 0\) \+ \$4::numeric\), true\), \$5::text\[\], .* WHERE collection = \$1 AND id = \$2`).
		WithArgs("photos", "p1", []string{"likes"}, int64(1), []string{"likedBy"}, `["u1"]`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewPostgresDocuments(mock).Update(context.Background(), "photos", "p1",
		Increment("likes", 1),
		ArrayUnion("likedBy", "u1"),
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNestedSetAndRemove(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents SET data = jsonb_set\(jsonb_set\(data, \$3::text\[\], \$4::jsonb, true\), \$5::text\[\], COALESCE\(\(SELECT jsonb_agg`).
		WithArgs("users", "u1", []string{"social", "twitter"}, `"@alice"`, []string{"followingList"}, `["u2"]`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := NewPostgresDocuments(mock).Update(context.Background(), "users", "u1",
		SetField("social.twitter", "@alice"),
		ArrayRemove("followingList", "u2"),
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMissingDocument(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents`).
		WithArgs("photos", "ghost", []string{"likes"}, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewPostgresDocuments(mock).Update(context.Background(), "photos", "ghost", Increment("likes", 1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDatabaseError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE documents`).
		WithArgs("photos", "p1", []string{"likes"}, int64(1)).
		WillReturnError(errors.New("connection reset"))

	err := NewPostgresDocuments(mock).Update(context.Background(), "photos", "p1", Increment("likes", 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUpdateRequiresFields(t *testing.T) {
	mock := newMock(t)
	err := NewPostgresDocuments(mock).Update(context.Background(), "photos", "p1")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, NewPostgresDocuments(mock).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
