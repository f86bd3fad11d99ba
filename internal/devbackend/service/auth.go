package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/calendar/internal/devbackend/domain"
	"github.com/aussiebroadwan/calendar/internal/devbackend/store"
	"github.com/aussiebroadwan/calendar/pkg/cryptox"
	"github.com/aussiebroadwan/calendar/pkg/idx"
	"github.com/aussiebroadwan/calendar/pkg/jwtx"
	"github.com/aussiebroadwan/calendar/pkg/slogx"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
)

// TokenSigner mints JWTs.
type TokenSigner interface {
	Sign(jwtx.Claims) (string, error)
}

// RefreshVerifier checks refresh JWTs.
type RefreshVerifier interface {
	VerifyRefresh(token string) (*jwtx.Claims, error)
}

// AuthService implements register, login, refresh rotation and logout.
type AuthService struct {
	Store      store.Store
	Hasher     *cryptox.PasswordHasher
	Signer     TokenSigner
	Verifier   RefreshVerifier
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Register creates a user. The first account on an empty store becomes ADMIN.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)

	v := validator{}
	_, addrErr := mail.ParseAddress(email)
	v.check(email != "" && addrErr == nil, "email", "must be a valid email address")
	v.check(utf8.RuneCountInString(username) >= minUsernameLength, "username", fmt.Sprintf("must be at least %d characters", minUsernameLength))
	v.check(len(password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	if err := v.err(); err != nil {
		return domain.User{}, err
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if empty {
			user.Role = domain.RoleAdmin
		}
		return tx.Users().CreateUser(ctx, user)
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, nil
}

// Login checks the password and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	user, err := s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.Session{}, err
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		slogx.FromContext(ctx).Info("login rejected", slog.String("user_id", user.ID))
		return domain.Session{}, ErrInvalidCredentials
	}

	var session domain.Session
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		session, err = s.issue(ctx, tx, user)
		return err
	})
	return session, err
}

// Refresh rotates a refresh token: the presented record is revoked and a new
// pair is issued. Presenting an already revoked token revokes every session
// of that user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.Verifier.VerifyRefresh(refreshToken)
	if err != nil {
		log.Debug("refresh token rejected", "err", err)
		return domain.Session{}, ErrInvalidRefresh
	}

	var (
		session domain.Session
		reused  bool
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		record, err := tx.RefreshTokens().GetRefreshToken(ctx, claims.ID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefresh
		}
		if err != nil {
			return err
		}
		if record.UserID != claims.UserID {
			return ErrInvalidRefresh
		}
		if record.Revoked {
			reused = true
			return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, record.UserID)
		}

		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, record.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		user, err := tx.Users().GetUserByID(ctx, record.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidRefresh
		}
		if err != nil {
			return err
		}

		session, err = s.issue(ctx, tx, user)
		return err
	})
	if reused {
		log.Warn("revoked refresh token presented, all sessions revoked", slog.String("user_id", claims.UserID))
		return domain.Session{}, ErrInvalidRefresh
	}
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Logout revokes the refresh token if it is still valid. An invalid or
// missing token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.Verifier.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	err = s.Store.RefreshTokens().RevokeRefreshToken(ctx, claims.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Me returns the user behind an access token.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return user, err
}

// ListUsers returns every account.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

func (s *AuthService) issue(ctx context.Context, tx store.Tx, user domain.User) (domain.Session, error) {
	now := time.Now().UTC()

	access, err := s.Signer.Sign(jwtx.NewAccessClaims(user.ID, user.Email, string(user.Role), s.Issuer, s.AccessTTL, now))
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshClaims := jwtx.NewRefreshClaims(user.ID, user.Email, s.Issuer, s.RefreshTTL, now)
	refresh, err := s.Signer.Sign(refreshClaims)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign refresh token: %w", err)
	}

	err = tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        refreshClaims.ID,
		UserID:    user.ID,
		ExpiresAt: refreshClaims.ExpiresAt.Time,
		CreatedAt: now,
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("record refresh token: %w", err)
	}

	return domain.Session{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		RefreshTTL:   s.RefreshTTL,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
