package services

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuslab/accountd/internal/common"
	"github.com/campuslab/accountd/internal/server/models"
	"github.com/campuslab/accountd/internal/server/password"
	"github.com/campuslab/accountd/internal/server/repositories/users"
)

func validCreateParams() CreateUserParams {
	return CreateUserParams{
		Username:          "jdoe",
		Password:          "correct horse",
		Name:              "John Doe",
		Shell:             "/bin/bash",
		PreferredLanguage: models.LanguageEnglish,
	}
}

func TestCreateUser_AllocatesUIDInsideTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeUsersRepo{nextUID: 10042}
	inv := &countingInvalidator{}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), inv)

	user, err := svc.CreateUser(context.Background(), validCreateParams())
	require.NoError(t, err)

	assert.Equal(t, int64(10042), user.UID)
	assert.Equal(t, int64(42), user.Idx)
	assert.Equal(t, 1, repo.lockCalls)
	assert.Equal(t, 1, inv.calls)

	// The stored digest must verify against the original password.
	match, err := password.Verify(repo.createdHash, "correct horse")
	require.NoError(t, err)
	assert.True(t, match)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_InvalidParams(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewAccountService(db, &fakeRepoManager{users: &fakeUsersRepo{}}, testConfig(), testLogger(), &countingInvalidator{})

	tests := []struct {
		name   string
		mutate func(*CreateUserParams)
	}{
		{"uppercase username", func(p *CreateUserParams) { p.Username = "JDoe" }},
		{"username starts with digit", func(p *CreateUserParams) { p.Username = "1jdoe" }},
		{"short password", func(p *CreateUserParams) { p.Password = "short" }},
		{"empty name", func(p *CreateUserParams) { p.Name = "" }},
		{"empty shell", func(p *CreateUserParams) { p.Shell = "" }},
		{"unknown language", func(p *CreateUserParams) { p.PreferredLanguage = "fr" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validCreateParams()
			tt.mutate(&p)
			_, err := svc.CreateUser(context.Background(), p)
			assert.Error(t, err)
		})
	}
}

func TestCreateUser_RollsBackOnCreateFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &fakeUsersRepo{nextUID: 10000, createErr: errors.New("db error")}
	inv := &countingInvalidator{}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), inv)

	_, err := svc.CreateUser(context.Background(), validCreateParams())
	require.Error(t, err)
	assert.Equal(t, 0, inv.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func modernCreds(t *testing.T, idx int64, pw string, activated bool) *users.Credentials {
	t.Helper()
	digest, err := password.Hash(pw)
	require.NoError(t, err)
	return &users.Credentials{Idx: idx, PasswordDigest: digest, Activated: activated}
}

func TestAuthenticate_ModernDigest(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeUsersRepo{creds: modernCreds(t, 7, "opensesame", true)}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	idx, err := svc.Authenticate(context.Background(), "jdoe", "opensesame")
	require.NoError(t, err)
	assert.Equal(t, int64(7), idx)
	assert.Equal(t, int64(7), repo.lastLogin)
	assert.Empty(t, repo.newDigest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &fakeUsersRepo{creds: modernCreds(t, 7, "opensesame", true)}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	_, err := svc.Authenticate(context.Background(), "jdoe", "wrong")
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)
	assert.Zero(t, repo.lastLogin)
}

func TestAuthenticate_NotActivated(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &fakeUsersRepo{creds: modernCreds(t, 7, "opensesame", false)}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	_, err := svc.Authenticate(context.Background(), "jdoe", "opensesame")
	assert.ErrorIs(t, err, common.ErrNotActivated)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	repo := &fakeUsersRepo{credsErr: common.ErrNoSuchEntry}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	_, err := svc.Authenticate(context.Background(), "ghost", "opensesame")
	assert.ErrorIs(t, err, common.ErrNoSuchEntry)
}

func legacySHA1Digest(t *testing.T, pw string, salt []byte) string {
	t.Helper()
	codes := utf16.Encode([]rune(pw))
	encoded := make([]byte, 0, len(codes)*2)
	for _, c := range codes {
		encoded = binary.LittleEndian.AppendUint16(encoded, c)
	}
	sum := sha1.Sum(append(encoded, salt...))
	enc := base64.RawStdEncoding
	return "$mssql-sha1$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(sum[:])
}

func TestAuthenticate_LegacyDigestRehashesOnSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	digest := legacySHA1Digest(t, "opensesame", []byte{1, 2, 3, 4})
	repo := &fakeUsersRepo{creds: &users.Credentials{Idx: 7, PasswordDigest: digest, Activated: true}}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	idx, err := svc.Authenticate(context.Background(), "jdoe", "opensesame")
	require.NoError(t, err)
	assert.Equal(t, int64(7), idx)

	// The row must now carry a modern digest that still verifies.
	require.True(t, strings.HasPrefix(repo.newDigest, "$argon2id$"))
	match, err := password.Verify(repo.newDigest, "opensesame")
	require.NoError(t, err)
	assert.True(t, match)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticate_LegacyDigestWrongPassword(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	digest := legacySHA1Digest(t, "opensesame", []byte{1, 2, 3, 4})
	repo := &fakeUsersRepo{creds: &users.Credentials{Idx: 7, PasswordDigest: digest, Activated: true}}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	_, err := svc.Authenticate(context.Background(), "jdoe", "wrong")
	assert.ErrorIs(t, err, common.ErrAuthenticationFailure)
	assert.Empty(t, repo.newDigest, "a failed legacy login must not rewrite the digest")
}

func TestChangePassword_StoresModernDigest(t *testing.T) {
	db, _ := newMockDB(t)
	repo := &fakeUsersRepo{}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), &countingInvalidator{})

	require.NoError(t, svc.ChangePassword(context.Background(), 7, "new password"))
	match, err := password.Verify(repo.newDigest, "new password")
	require.NoError(t, err)
	assert.True(t, match)

	assert.Error(t, svc.ChangePassword(context.Background(), 7, "short"))
}

func TestChangeShell_InvalidatesDirectoryCache(t *testing.T) {
	db, _ := newMockDB(t)
	repo := &fakeUsersRepo{}
	inv := &countingInvalidator{}
	svc := NewAccountService(db, &fakeRepoManager{users: repo}, testConfig(), testLogger(), inv)

	require.NoError(t, svc.ChangeShell(context.Background(), 7, "/bin/zsh"))
	assert.Equal(t, []string{"/bin/zsh"}, repo.shellCalls)
	assert.Equal(t, 1, inv.calls)

	assert.Error(t, svc.ChangeShell(context.Background(), 7, ""))
	assert.Equal(t, 1, inv.calls)
}
