package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureNotifier struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (n *captureNotifier) Notify(ctx context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.msgs)
	m := regexp.MustCompile(`/reset-password/([0-9a-f]+)`).FindStringSubmatch(n.msgs[len(n.msgs)-1].Body)
	require.Len(t, m, 2)
	return m[1]
}

func newUserSvc(t *testing.T) (*UserService, *flakyUsers, *captureNotifier) {
	t.Helper()
	repo := newFlakyUsers()
	n := &captureNotifier{}
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		ResetTokenValidityDuration:  10 * time.Minute,
		BcryptCost:                  bcrypt.MinCost,
		PublicBaseURL:               "https://social.example/",
	}
	return NewUserService(repo, n, cfg, nop()), repo, n
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserSvc(t)

	u, err := svc.Register(ctx, "Alice", "alice@example.com", "pw")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("pw"), u.PasswordHash)

	_, err = svc.Register(ctx, "Other", "ALICE@example.com", "pw2")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = svc.Register(ctx, "NoPw", "x@example.com", "")
	assert.ErrorIs(t, err, common.ErrorInvalidOperation)

	token, got, err := svc.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	actor, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, _, err = svc.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAuthenticate_RejectsDeletedUserAndBadTokens(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newUserSvc(t)
	_, err := svc.Register(ctx, "Bob", "bob@example.com", "pw")
	require.NoError(t, err)
	token, u, err := svc.Login(ctx, "bob@example.com", "pw")
	require.NoError(t, err)

	_, err = repo.Delete(ctx, u.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserSvc(t)
	a, _ := svc.Register(ctx, "A", "a@example.com", "pw")
	_, _ = svc.Register(ctx, "B", "b@example.com", "pw")

	u, err := svc.UpdateProfile(ctx, a.ID, "Alpha", "")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", u.Name)
	assert.Equal(t, "a@example.com", u.Email)

	_, err = svc.UpdateProfile(ctx, a.ID, "", "b@example.com")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = svc.UpdateProfile(ctx, "ghost", "x", "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdatePassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newUserSvc(t)
	u, _ := svc.Register(ctx, "A", "a@example.com", "old")

	err := svc.UpdatePassword(ctx, u.ID, "wrong", "new")
	assert.ErrorIs(t, err, common.ErrorInvalidOperation)

	require.NoError(t, svc.UpdatePassword(ctx, u.ID, "old", "new"))
	_, _, err = svc.Login(ctx, "a@example.com", "old")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, _, err = svc.Login(ctx, "a@example.com", "new")
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	svc, repo, n := newUserSvc(t)
	u, _ := svc.Register(ctx, "A", "a@example.com", "old")

	require.NoError(t, svc.ForgotPassword(ctx, "a@example.com"))
	token := n.lastToken(t)
	assert.True(t, strings.Contains(n.msgs[0].Body, "https://social.example/reset-password/"))
	assert.Equal(t, "a@example.com", n.msgs[0].To)

	stored := mustFind(t, repo, u.ID)
	assert.Equal(t, common.HashToken(token), stored.ResetTokenHash, "only the hash is stored")
	require.NotNil(t, stored.ResetTokenExpiry)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "deadbeef", "new"), common.ErrResetTokenInvalid)
	require.NoError(t, svc.ResetPassword(ctx, token, "new"))

	stored = mustFind(t, repo, u.ID)
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)
	_, _, err := svc.Login(ctx, "a@example.com", "new")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "again"), common.ErrResetTokenInvalid, "token is single use")
}

func TestResetPassword_Expired(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newUserSvc(t)
	_, _ = svc.Register(ctx, "A", "a@example.com", "old")
	require.NoError(t, svc.ForgotPassword(ctx, "a@example.com"))
	token := n.lastToken(t)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "new"), common.ErrResetTokenInvalid)
}

func TestResetPassword_ExpiresBetweenLookupAndWrite(t *testing.T) {
	ctx := context.Background()
	svc, repo, n := newUserSvc(t)
	u, _ := svc.Register(ctx, "A", "a@example.com", "old")
	require.NoError(t, svc.ForgotPassword(ctx, "a@example.com"))
	token := n.lastToken(t)

	// The lookup sees a live token, the write sees it expired.
	calls := 0
	svc.now = func() time.Time {
		calls++
		if calls == 1 {
			return time.Now()
		}
		return time.Now().Add(time.Hour)
	}
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, "new"), common.ErrResetTokenInvalid)

	_, _, err := svc.Login(ctx, "a@example.com", "old")
	assert.NoError(t, err, "password unchanged")
	assert.NotEmpty(t, mustFind(t, repo, u.ID).ResetTokenHash)
}

func TestForgotPassword_NotifierFailureClearsToken(t *testing.T) {
	ctx := context.Background()
	svc, repo, n := newUserSvc(t)
	u, _ := svc.Register(ctx, "A", "a@example.com", "old")
	n.err = errors.New("smtp down")

	err := svc.ForgotPassword(ctx, "a@example.com")
	require.ErrorIs(t, err, common.ErrorInternal)

	stored := mustFind(t, repo, u.ID)
	assert.Empty(t, stored.ResetTokenHash)
	assert.Nil(t, stored.ResetTokenExpiry)

	assert.ErrorIs(t, svc.ForgotPassword(ctx, "nobody@example.com"), common.ErrorNotFound)
}

func TestConnections(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newUserSvc(t)
	rel := NewRelationshipService(repo, fastRetry, nop(), nil)
	for _, id := range []string{"a", "b", "c"} {
		mustUser(t, repo, id)
	}
	_, _ = rel.ToggleFollow(ctx, "b", "a")
	_, _ = rel.ToggleFollow(ctx, "a", "c")

	followers, following, err := svc.Connections(ctx, "a")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	require.Len(t, following, 1)
	assert.Equal(t, "b", followers[0].ID)
	assert.Equal(t, "c", following[0].ID)
}
