package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestURLStoreBulkInsertReportsInsertedCount(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewURLStore(mock, "links")
	require.NoError(t, err)

	urls := []string{"https://goo.gl/abc", "https://goo.gl/def"}
	mock.ExpectExec("INSERT INTO links").
		WithArgs(urls).
		WillReturnResult(pgxmock.NewResult("INSERT", 1)) // one duplicate skipped

	inserted, err := s.BulkInsert(context.Background(), urls)
	require.NoError(t, err)
	require.Equal(t, int64(1), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestURLStoreBulkInsertEmptyBatchSkipsRoundTrip(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewURLStore(mock, "links")
	require.NoError(t, err)

	inserted, err := s.BulkInsert(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestURLStoreRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewURLStore(mock, "links; DROP TABLE links")
	require.Error(t, err)
}

func TestURLStoreListURLs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewURLStore(mock, "links")
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"url"}).
		AddRow("https://goo.gl/abc").
		AddRow("https://goo.gl/def")
	mock.ExpectQuery("SELECT url FROM links").WillReturnRows(rows)

	urls, err := s.ListURLs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://goo.gl/abc", "https://goo.gl/def"}, urls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixStoreClaim(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPrefixStore(mock, "prefixes")
	require.NoError(t, err)

	mock.ExpectQuery("UPDATE prefixes SET status = 'PROCESSING'").
		WillReturnRows(pgxmock.NewRows([]string{"prefix"}).AddRow("abc"))

	prefix, err := s.Claim(context.Background())
	require.NoError(t, err)
	require.Equal(t, "abc", prefix)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixStoreClaimExhausted(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPrefixStore(mock, "prefixes")
	require.NoError(t, err)

	mock.ExpectQuery("UPDATE prefixes SET status = 'PROCESSING'").
		WillReturnRows(pgxmock.NewRows([]string{"prefix"}))

	_, err = s.Claim(context.Background())
	require.True(t, errors.Is(err, ErrNoWork))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixStoreComplete(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPrefixStore(mock, "prefixes")
	require.NoError(t, err)

	mock.ExpectExec("UPDATE prefixes SET status = 'DONE'").
		WithArgs("abc").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Complete(context.Background(), "abc"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrefixStoreSeedBatches(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPrefixStore(mock, "prefixes")
	require.NoError(t, err)

	prefixes := []string{"aaa", "aab", "aac"}
	mock.ExpectExec("INSERT INTO prefixes").
		WithArgs(prefixes[:2]).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec("INSERT INTO prefixes").
		WithArgs(prefixes[2:]).
		WillReturnResult(pgxmock.NewResult("INSERT", 0)) // already seeded

	inserted, err := s.Seed(context.Background(), prefixes, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}
