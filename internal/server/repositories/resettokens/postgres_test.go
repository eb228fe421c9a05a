package resettokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campuslab/accountd/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestUpsert_ConflictPathRefreshesExpiry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+password_change_tokens\s+AS\s+p.*ON\s+CONFLICT\s+\(user_idx\)\s+DO\s+UPDATE\s+SET\s+token\s*=\s*\$2,\s*expires\s*=\s*\$3,\s*resend_count\s*=\s*p\.resend_count\s*\+\s*1`

	expires := time.Now().Add(24 * time.Hour)
	mock.ExpectExec(q).
		WithArgs(int64(1), "cafebabe", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(context.Background(), 1, "cafebabe", expires); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetToken_ScansFullRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Now().Add(time.Hour)
	mock.ExpectQuery(`(?s)SELECT\s+idx,\s*user_idx,\s*token,\s*expires,\s*resend_count\s+FROM\s+password_change_tokens`).
		WithArgs("cafebabe").
		WillReturnRows(sqlmock.NewRows([]string{"idx", "user_idx", "token", "expires", "resend_count"}).
			AddRow(int64(4), int64(11), "cafebabe", expires, 1))

	token, err := repo.GetToken(context.Background(), "cafebabe")
	if err != nil {
		t.Fatalf("GetToken error: %v", err)
	}
	if token.Idx != 4 || token.OwnerIdx != 11 || token.ResendCount != 1 {
		t.Fatalf("unexpected token row: %+v", token)
	}
	if !token.Expires.Equal(expires) {
		t.Fatalf("expected expiry %v, got %v", expires, token.Expires)
	}
}

func TestGetToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+idx,\s*user_idx,\s*token,\s*expires,\s*resend_count\s+FROM\s+password_change_tokens`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetToken(context.Background(), "nope")
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry, got %v", err)
	}
}

func TestConsume_ReturnsBoundUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)DELETE\s+FROM\s+password_change_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING\s+user_idx`).
		WithArgs("cafebabe").
		WillReturnRows(sqlmock.NewRows([]string{"user_idx"}).AddRow(int64(11)))

	userIdx, err := repo.Consume(context.Background(), "cafebabe")
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if userIdx != 11 {
		t.Fatalf("expected user idx 11, got %d", userIdx)
	}
}

func TestConsume_AbsentTokenIsNoSuchEntry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)DELETE\s+FROM\s+password_change_tokens`).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "gone")
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry, got %v", err)
	}
}
