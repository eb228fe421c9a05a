package emails

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

func TestCreate_UpsertReturnsIdx(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+email_addresses.*ON\s+CONFLICT\s+\(LOWER\(address_local\),\s*LOWER\(address_domain\)\).*RETURNING\s+idx`

	mock.ExpectQuery(q).
		WithArgs("Alice", "example.org").
		WillReturnRows(sqlmock.NewRows([]string{"idx"}).AddRow(int64(3)))

	idx, err := repo.Create(context.Background(), "Alice", "example.org")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if idx != 3 {
		t.Fatalf("expected idx 3, got %d", idx)
	}
}

func TestUpsertToken_ConflictPathIncrementsResendCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)INSERT\s+INTO\s+email_verification_tokens\s+AS\s+e.*ON\s+CONFLICT\s+\(email_idx\)\s+DO\s+UPDATE\s+SET\s+token\s*=\s*\$2,\s*expires\s*=\s*\$3,\s*resend_count\s*=\s*e\.resend_count\s*\+\s*1`

	expires := time.Now().Add(24 * time.Hour)
	mock.ExpectExec(q).
		WithArgs(int64(1), "deadbeef", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpsertToken(context.Background(), 1, "deadbeef", expires); err != nil {
		t.Fatalf("UpsertToken error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetResendCountIfExpired_OnlyTouchesExpiredRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)UPDATE\s+email_verification_tokens\s+SET\s+resend_count\s*=\s*0\s+WHERE\s+email_idx\s*=\s*\$1\s+AND\s+expires\s*<=\s*now\(\)`

	mock.ExpectExec(q).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ResetResendCountIfExpired(context.Background(), 1); err != nil {
		t.Fatalf("ResetResendCountIfExpired error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestConsumeToken_ReturnsBoundEmailIdx(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)DELETE\s+FROM\s+email_verification_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING\s+email_idx`

	mock.ExpectQuery(q).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"email_idx"}).AddRow(int64(5)))

	emailIdx, err := repo.ConsumeToken(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("ConsumeToken error: %v", err)
	}
	if emailIdx != 5 {
		t.Fatalf("expected email idx 5, got %d", emailIdx)
	}
}

func TestConsumeToken_SecondConsumeFails(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)DELETE\s+FROM\s+email_verification_tokens`

	mock.ExpectQuery(q).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"email_idx"}).AddRow(int64(5)))
	mock.ExpectQuery(q).
		WithArgs("deadbeef").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.ConsumeToken(context.Background(), "deadbeef"); err != nil {
		t.Fatalf("first consume error: %v", err)
	}
	_, err := repo.ConsumeToken(context.Background(), "deadbeef")
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry on second consume, got %v", err)
	}
}

func TestOwnerIdx_UnownedAddressIsNoSuchEntry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+owner_idx\s+FROM\s+email_addresses`).
		WithArgs("alice", "example.org").
		WillReturnRows(sqlmock.NewRows([]string{"owner_idx"}).AddRow(nil))

	_, err := repo.OwnerIdx(context.Background(), "alice", "example.org")
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry, got %v", err)
	}
}

func TestGetToken_ScansFullRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Now().Add(24 * time.Hour)
	mock.ExpectQuery(`(?s)SELECT\s+idx,\s*email_idx,\s*token,\s*expires,\s*resend_count\s+FROM\s+email_verification_tokens`).
		WithArgs("deadbeef").
		WillReturnRows(sqlmock.NewRows([]string{"idx", "email_idx", "token", "expires", "resend_count"}).
			AddRow(int64(7), int64(3), "deadbeef", expires, 2))

	token, err := repo.GetToken(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("GetToken error: %v", err)
	}
	if token.Idx != 7 || token.OwnerIdx != 3 || token.ResendCount != 2 {
		t.Fatalf("unexpected token row: %+v", token)
	}
	if !token.Expires.Equal(expires) {
		t.Fatalf("expected expiry %v, got %v", expires, token.Expires)
	}
}

func TestGetToken_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+idx,\s*email_idx,\s*token,\s*expires,\s*resend_count\s+FROM\s+email_verification_tokens`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetToken(context.Background(), "nope")
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry, got %v", err)
	}
}

func TestGetIdxByAddress_MatchesCaseInsensitively(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+idx\s+FROM\s+email_addresses\s+WHERE\s+LOWER\(address_local\)\s*=\s*LOWER\(\$1\)`).
		WithArgs("Alice", "Example.ORG").
		WillReturnRows(sqlmock.NewRows([]string{"idx"}).AddRow(int64(3)))

	idx, err := repo.GetIdxByAddress(context.Background(), "Alice", "Example.ORG")
	if err != nil {
		t.Fatalf("GetIdxByAddress error: %v", err)
	}
	if idx != 3 {
		t.Fatalf("expected idx 3, got %d", idx)
	}
}

func TestGetIdxByAddress_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+idx\s+FROM\s+email_addresses`).
		WithArgs("ghost", "example.org").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetIdxByAddress(context.Background(), "ghost", "example.org")
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry, got %v", err)
	}
}

func TestIsValidated_DependsOnOwnerBinding(t *testing.T) {
	tests := []struct {
		name      string
		owner     any
		validated bool
	}{
		{"bound owner", int64(9), true},
		{"no owner yet", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(`(?s)SELECT\s+owner_idx\s+FROM\s+email_addresses\s+WHERE\s+idx\s*=\s*\$1`).
				WithArgs(int64(3)).
				WillReturnRows(sqlmock.NewRows([]string{"owner_idx"}).AddRow(tt.owner))

			validated, err := repo.IsValidated(context.Background(), 3)
			if err != nil {
				t.Fatalf("IsValidated error: %v", err)
			}
			if validated != tt.validated {
				t.Fatalf("expected validated=%v, got %v", tt.validated, validated)
			}
		})
	}
}

func TestIsValidated_UnknownAddress(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT\s+owner_idx\s+FROM\s+email_addresses\s+WHERE\s+idx\s*=\s*\$1`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.IsValidated(context.Background(), 99)
	if !errors.Is(err, common.ErrNoSuchEntry) {
		t.Fatalf("expected ErrNoSuchEntry, got %v", err)
	}
}
