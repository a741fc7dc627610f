package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/Skotchmaster/jyra/internal/events"
	"github.com/Skotchmaster/jyra/internal/logging"
	"github.com/Skotchmaster/jyra/internal/models"
	"github.com/Skotchmaster/jyra/internal/repo"
	"github.com/Skotchmaster/jyra/internal/tokens"
)

type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	CreateAccount(ctx context.Context, workplaceName string, u *models.User) error
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	IssueAccess(subject string) (string, time.Time, error)
	IssueRefresh(subject string) (string, time.Time, error)
	Verify(token string, kind tokens.Kind) (*tokens.Claims, error)
}

type AuthService struct {
	Store       Store
	Hasher      Hasher
	Tokens      TokenIssuer
	Events      events.Publisher
	AdminSecret string

	dummyOnce sync.Once
	dummyHash string
}

type SessionResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

type RefreshResult struct {
	Subject     string
	AccessToken string
	AccessExp   time.Time
}

type credentials struct {
	Email    string
	Password string
}

func (c credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required),
		validation.Field(&c.Password, validation.Required),
	)
}

func WorkplaceName(email string) string {
	return email + "'s workspace"
}

func DisplayName(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}

// isAdminSecret compares digests so the comparison time does not depend on
// the length of the supplied value. An unset admin secret elevates nobody.
func (s *AuthService) isAdminSecret(given string) bool {
	if s.AdminSecret == "" || given == "" {
		return false
	}
	want := sha256.Sum256([]byte(s.AdminSecret))
	got := sha256.Sum256([]byte(given))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

func (s *AuthService) Signup(ctx context.Context, email, password, adminSecret string) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	if err := (credentials{Email: email, Password: password}).Validate(); err != nil {
		l.Warn("signup_failed", "status", 400, "reason", "validation", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if _, err := s.Store.FindUserByEmail(ctx, email); err == nil {
		l.Warn("signup_failed", "status", 400, "reason", "email_taken")
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repo.ErrUserNotFound) {
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	pwHash, err := s.Hasher.Hash(password)
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	user := &models.User{
		Name:         DisplayName(email),
		Email:        email,
		PasswordHash: pwHash,
		IsAdmin:      s.isAdminSecret(adminSecret),
	}
	if err := s.Store.CreateAccount(ctx, WorkplaceName(email), user); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			l.Warn("signup_failed", "status", 400, "reason", "email_taken")
			return nil, ErrDuplicateEmail
		}
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	res, err := s.issueSession(user)
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "cannot create token", "error", err)
		return nil, err
	}

	s.publish(ctx, events.UserSignedUp, user)
	l.Info("signup_success", "user_id", user.ID, "is_admin", user.IsAdmin)
	return res, nil
}

func (s *AuthService) Signin(ctx context.Context, email, password string) (*SessionResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signin")

	if err := (credentials{Email: email, Password: password}).Validate(); err != nil {
		l.Warn("signin_failed", "status", 400, "reason", "validation", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			// same hashing cost as a wrong password for a known email
			s.Hasher.Verify(password, s.unknownUserHash())
			l.Warn("signin_failed", "status", 401, "reason", "invalid email or password")
			return nil, ErrInvalidCredentials
		}
		l.Error("signin_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		l.Warn("signin_failed", "status", 401, "reason", "invalid email or password")
		return nil, ErrInvalidCredentials
	}

	res, err := s.issueSession(user)
	if err != nil {
		l.Error("signin_failed", "status", 500, "reason", "cannot create token", "error", err)
		return nil, err
	}

	s.publish(ctx, events.UserSignedIn, user)
	l.Info("signin_success", "user_id", user.ID)
	return res, nil
}

// Refresh mints a new access token for the refresh token's subject. The
// refresh token itself is not rotated and stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := s.Tokens.Verify(refreshToken, tokens.Refresh)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	access, exp, err := s.Tokens.IssueAccess(claims.Subject)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot create token", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	l.Info("refresh_success", "user_id", claims.Subject)
	return &RefreshResult{Subject: claims.Subject, AccessToken: access, AccessExp: exp}, nil
}

// CurrentUser resolves the subject of a verified access token. Tokens are not
// revocable, so the user may have disappeared since the token was issued.
func (s *AuthService) CurrentUser(ctx context.Context, subject string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.current_user")

	id, err := strconv.ParseUint(subject, 10, 64)
	if err != nil || id == 0 {
		l.Warn("current_user_failed", "status", 401, "reason", "bad subject")
		return nil, ErrUnauthorized
	}

	user, err := s.Store.FindUserByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			l.Warn("current_user_failed", "status", 404, "user_id", id)
			return nil, ErrNotFound
		}
		l.Error("current_user_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return user, nil
}

func (s *AuthService) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash("jyra-unknown-user")
	})
	return s.dummyHash
}

func (s *AuthService) issueSession(user *models.User) (*SessionResult, error) {
	subject := strconv.FormatUint(uint64(user.ID), 10)

	access, accessExp, err := s.Tokens.IssueAccess(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	refresh, refreshExp, err := s.Tokens.IssueRefresh(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	return &SessionResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, typ string, user *models.User) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ev := events.UserEvent{Type: typ, UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin, At: time.Now().UTC()}
	if err := s.Events.Publish(ctx, strconv.FormatUint(uint64(user.ID), 10), ev); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "type", typ, "error", err)
	}
}
