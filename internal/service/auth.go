package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/metrics"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
)

type LoginResult struct {
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresIn    int64             `json:"expiresIn"`
	User         *models.User      `json:"user"`
	Capabilities auth.Capabilities `json:"capabilities"`
}

type RefreshResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

type MeResult struct {
	User         *models.User      `json:"user"`
	Capabilities auth.Capabilities `json:"capabilities"`
}

// AuthService owns the server half of a session: the sessions row named by
// the sid claim, the access tokens minted for it and the refresh token in
// Redis that can mint more.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	issuer     *auth.TokenIssuer
	refresh    *auth.RefreshStore
	refreshTTL time.Duration
	audit      *Auditor
	lg         *zap.SugaredLogger
	now        func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	issuer *auth.TokenIssuer,
	refresh *auth.RefreshStore,
	refreshTTL time.Duration,
	audit *Auditor,
	lg *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		issuer:     issuer,
		refresh:    refresh,
		refreshTTL: refreshTTL,
		audit:      audit,
		lg:         lg,
		now:        time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	defer func() { metrics.Logins.WithLabelValues(metrics.Outcome(err)).Inc() }()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || auth.CheckPassword(user.PasswordHash, password) != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	token, err := s.issuer.Sign(user.ID, user.Role, sess.ID)
	if err != nil {
		s.abandonSession(ctx, sess.ID)
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.refresh.Issue(ctx, sess.ID)
	if err != nil {
		s.abandonSession(ctx, sess.ID)
		return nil, fmt.Errorf("%w: %v", apperr.ErrServiceUnavailable, err)
	}

	s.audit.Record(ctx, user.ID, "login", map[string]any{"session": sess.ID})
	s.lg.Infow("user logged in", "user_id", user.ID, "role", user.Role)
	return &LoginResult{
		Token:        token,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
		User:         user,
		Capabilities: auth.CapabilitiesFor(user.Role),
	}, nil
}

// Refresh mints a new access token for the session behind refreshToken.
// The refresh token itself is not rotated. The new token carries the user's
// current role, so a role change takes effect at the next renewal.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (res *RefreshResult, err error) {
	defer func() { metrics.TokenRefreshes.WithLabelValues(metrics.Outcome(err)).Inc() }()

	sid, err := s.refresh.Resolve(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	sess, err := s.activeSession(ctx, sid)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, sess.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", apperr.ErrAuth)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrAuth)
	}
	token, err := s.issuer.Sign(user.ID, user.Role, sid)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &RefreshResult{Token: token, ExpiresIn: int64(s.issuer.AccessTTL().Seconds())}, nil
}

// Logout revokes the caller's session row and its refresh token. Access
// tokens already issued stop working at the next CheckSession.
func (s *AuthService) Logout(ctx context.Context, claims auth.Claims) error {
	if err := s.sessions.Revoke(ctx, claims.SessionID, s.now()); err != nil {
		return err
	}
	if err := s.refresh.Revoke(ctx, claims.SessionID); err != nil {
		s.lg.Warnw("refresh token revoke failed", "session", claims.SessionID, "error", err)
	}
	s.audit.Record(ctx, claims.UserID, "logout", map[string]any{"session": claims.SessionID})
	return nil
}

func (s *AuthService) abandonSession(ctx context.Context, sid string) {
	if err := s.sessions.Revoke(context.WithoutCancel(ctx), sid, s.now()); err != nil {
		s.lg.Warnw("revoke abandoned session failed", "session", sid, "error", err)
	}
}

// RevokeUserSessions ends every live session of userID along with its
// refresh token.
func (s *AuthService) RevokeUserSessions(ctx context.Context, userID int64) error {
	ids, err := s.sessions.RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return err
	}
	for _, sid := range ids {
		if err := s.refresh.Revoke(ctx, sid); err != nil {
			s.lg.Warnw("refresh token revoke failed", "session", sid, "error", err)
		}
	}
	if len(ids) > 0 {
		s.lg.Infow("user sessions revoked", "user_id", userID, "count", len(ids))
	}
	return nil
}

func (s *AuthService) CheckSession(ctx context.Context, sid string) error {
	_, err := s.activeSession(ctx, sid)
	return err
}

func (s *AuthService) activeSession(ctx context.Context, sid string) (*models.Session, error) {
	sess, err := s.sessions.FindByID(ctx, sid)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown session", apperr.ErrAuth)
	}
	if err != nil {
		return nil, err
	}
	if !sess.Active(s.now()) {
		return nil, fmt.Errorf("%w: session expired or revoked", apperr.ErrAuth)
	}
	return sess, nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*MeResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MeResult{User: user, Capabilities: auth.CapabilitiesFor(user.Role)}, nil
}

// SweepSessions deletes session rows that can no longer authenticate anyone.
func (s *AuthService) SweepSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.SessionsSwept.Add(float64(n))
	return n, nil
}

// SeedAdmin creates the bootstrap administrator when no account uses email.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u := &models.User{
		Name:         "Administrator",
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.lg.Infow("seeded default admin", "email", u.Email)
	return nil
}
