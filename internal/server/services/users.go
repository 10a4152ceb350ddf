package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/auth"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
)

var (
	errEmptyCredentials     = errors.New("email and password are required")
	errPasswordChanged      = errors.New("password changed concurrently")
	errWrongCurrentPassword = errors.New("current password does not match")
)

// UserService provides registration, login, profile and password recovery.
type UserService struct {
	users    users.Repository
	hasher   *auth.Hasher
	notifier Notifier
	log      logging.Logger

	jwtSecret           []byte
	accessTokenValidity time.Duration
	resetTokenValidity  time.Duration
	publicBaseURL       string

	now func() time.Time
}

// NewUserService constructs a UserService using the Identity Store and
// server config.
func NewUserService(u users.Repository, n Notifier, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		users:               u,
		hasher:              auth.NewHasher(cfg.BcryptCost),
		notifier:            n,
		log:                 log.With("module", "users"),
		jwtSecret:           []byte(cfg.SecretKey),
		accessTokenValidity: cfg.AccessTokenValidityDuration,
		resetTokenValidity:  cfg.ResetTokenValidityDuration,
		publicBaseURL:       strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:                 time.Now,
	}
}

// Register creates a user. A taken email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, common.InvalidOperation("user", "", errEmptyCredentials)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, &models.User{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, common.StoreFailure("user", "", err)
	}
	s.log.Info(ctx, "user registered", "user", u.ID)
	return u, nil
}

// Login checks the password of the user with email and returns a signed
// access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, common.StoreFailure("user", email, err)
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return "", nil, common.ErrorUnauthorized
	}
	token, err := auth.GenerateToken(u.ID, s.jwtSecret, s.accessTokenValidity)
	if err != nil {
		return "", nil, common.ErrorInternal
	}
	return token, u, nil
}

// Authenticate resolves an access token to the id of a user that still
// exists.
func (s *UserService) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", err
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.StoreFailure("user", userID, err)
	}
	return userID, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, common.StoreFailure("user", userID, err)
	}
	return u, nil
}

// Connections returns the profiles behind the follower and following sets.
// Ids whose user vanished meanwhile are left out.
func (s *UserService) Connections(ctx context.Context, userID string) (followers, following []*models.User, err error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if followers, err = s.users.ListByIDs(ctx, u.Followers); err != nil {
		return nil, nil, common.StoreFailure("user", userID, err)
	}
	if following, err = s.users.ListByIDs(ctx, u.Following); err != nil {
		return nil, nil, common.StoreFailure("user", userID, err)
	}
	return followers, following, nil
}

// UpdateProfile changes name and email. Empty values keep the current ones.
func (s *UserService) UpdateProfile(ctx context.Context, userID, name, email string) (*models.User, error) {
	u, err := s.users.Update(ctx, userID, func(u *models.User) error {
		if name != "" {
			u.Name = name
		}
		if email = strings.TrimSpace(email); email != "" {
			u.Email = email
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, common.StoreFailure("user", userID, err)
	}
	return u, nil
}

// UpdatePassword replaces the password after checking the current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID, current, next string) error {
	if next == "" {
		return common.InvalidOperation("user", userID, errEmptyCredentials)
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return common.StoreFailure("user", userID, err)
	}
	if err := s.hasher.Compare(u.PasswordHash, current); err != nil {
		return common.InvalidOperation("user", userID, errWrongCurrentPassword)
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	var conflict error
	_, err = s.users.Update(ctx, userID, func(cur *models.User) error {
		if !bytes.Equal(cur.PasswordHash, u.PasswordHash) {
			conflict = common.InvalidOperation("user", userID, errPasswordChanged)
			return conflict
		}
		cur.PasswordHash = hash
		return nil
	})
	if conflict != nil {
		return conflict
	}
	if err != nil {
		return common.StoreFailure("user", userID, err)
	}
	return nil
}

// ForgotPassword stores a hashed one-time reset token and sends the raw
// token in a link. If the message cannot be sent the token is cleared
// again.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return common.StoreFailure("user", email, err)
	}

	token, err := common.MakeRandHexString(20)
	if err != nil {
		return common.ErrorInternal
	}
	expiry := s.now().Add(s.resetTokenValidity)
	if _, err := s.users.Update(ctx, u.ID, func(u *models.User) error {
		u.SetResetToken(common.HashToken(token), expiry)
		return nil
	}); err != nil {
		return common.StoreFailure("user", u.ID, err)
	}

	msg := Message{
		To:      u.Email,
		Subject: "Password reset",
		Body: fmt.Sprintf("Use the link below to reset your password. It expires at %s.\n\n%s/reset-password/%s",
			expiry.UTC().Format(time.RFC3339), s.publicBaseURL, token),
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		if _, cerr := s.users.Update(ctx, u.ID, func(u *models.User) error {
			u.ClearResetToken()
			return nil
		}); cerr != nil {
			s.log.Error(ctx, "clear reset token failed", "user", u.ID, "error", cerr)
		}
		return &common.Error{Kind: common.ErrorInternal, Entity: "notifier", ID: u.ID, Err: err}
	}
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset
// token and invalidates the token.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return common.InvalidOperation("user", "", errEmptyCredentials)
	}
	tokenHash := common.HashToken(token)
	u, err := s.users.FindByResetToken(ctx, tokenHash, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrResetTokenInvalid
		}
		return common.StoreFailure("user", "", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.users.Update(ctx, u.ID, func(u *models.User) error {
		if u.ResetTokenHash != tokenHash || u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(s.now()) {
			return common.ErrResetTokenInvalid
		}
		u.PasswordHash = hash
		u.ClearResetToken()
		return nil
	})
	if errors.Is(err, common.ErrResetTokenInvalid) {
		return err
	}
	if err != nil {
		return common.StoreFailure("user", u.ID, err)
	}
	return nil
}
