package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campusmatch/backend/internal/domain/rules"
	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
	"github.com/campusmatch/backend/internal/services/notify"
)

const (
	MinRefreshTTL = 30 * 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour

	minPasswordLen  = 8
	verificationTTL = 48 * time.Hour
)

type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshToken string) error
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (SessionRecord, error)
	RotateRefresh(ctx context.Context, sid, oldRefreshToken, newRefreshToken string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllForUser(ctx context.Context, userID int64) error
}

type UserStore interface {
	Create(ctx context.Context, email, passwordHash, university string) (pgrepo.UserRecord, error)
	GetByEmail(ctx context.Context, email string) (pgrepo.UserRecord, error)
	GetByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
	MarkVerified(ctx context.Context, userID int64) error
}

// VerificationStore holds pending email confirmation codes.
type VerificationStore interface {
	CreateCode(ctx context.Context, code string, userID int64, ttl time.Duration) error
	ConsumeCode(ctx context.Context, code string) (int64, error)
}

type ProfileBootstrap interface {
	CreateEmpty(ctx context.Context, userID int64) error
}

type Service struct {
	jwt            *JWTManager
	sessions       SessionStore
	users          UserStore
	profiles       ProfileBootstrap
	verifications  VerificationStore
	bridge         notify.Bridge
	allowedDomains map[string]struct{}
	refreshTTL     time.Duration
	now            func() time.Time
}

type Dependencies struct {
	JWT            *JWTManager
	Sessions       SessionStore
	Users          UserStore
	Profiles       ProfileBootstrap
	Verifications  VerificationStore
	Bridge         notify.Bridge
	AllowedDomains []string
	RefreshTTL     time.Duration
}

func NewService(deps Dependencies) *Service {
	refreshTTL := deps.RefreshTTL
	if refreshTTL < MinRefreshTTL {
		refreshTTL = MinRefreshTTL
	}
	if refreshTTL > MaxRefreshTTL {
		refreshTTL = MaxRefreshTTL
	}

	allowed := make(map[string]struct{}, len(deps.AllowedDomains))
	for _, d := range deps.AllowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			allowed[d] = struct{}{}
		}
	}

	bridge := deps.Bridge
	if bridge == nil {
		bridge = notify.NopBridge{}
	}

	return &Service{
		jwt:            deps.JWT,
		sessions:       deps.Sessions,
		users:          deps.Users,
		profiles:       deps.Profiles,
		verifications:  deps.Verifications,
		bridge:         bridge,
		allowedDomains: allowed,
		refreshTTL:     refreshTTL,
		now:            time.Now,
	}
}

// Register creates an account for an institutional email. The university
// is the email domain, which later scopes candidate discovery to the
// same campus.
func (s *Service) Register(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	university, ok := rules.UniversityFromEmail(email)
	if !ok {
		return AuthResult{}, ErrInvalidInput
	}
	if len(s.allowedDomains) > 0 {
		if _, found := s.allowedDomains[university]; !found {
			return AuthResult{}, ErrEmailNotAllowed
		}
	}
	if len(password) < minPasswordLen {
		return AuthResult{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash), university)
	if err != nil {
		if errors.Is(err, pgrepo.ErrEmailTaken) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	if s.profiles != nil {
		if err := s.profiles.CreateEmpty(ctx, user.ID); err != nil {
			return AuthResult{}, fmt.Errorf("bootstrap profile: %w", err)
		}
	}

	if err := s.issueVerification(ctx, user); err != nil {
		return AuthResult{}, err
	}

	return s.issueForUser(ctx, user)
}

// RequestEmailVerification re-issues a confirmation code, for users
// whose original email never arrived. Already verified accounts get
// nothing.
func (s *Service) RequestEmailVerification(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidInput
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("get user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}

	return s.issueVerification(ctx, user)
}

// VerifyEmail burns a confirmation code and marks its owner verified,
// which is what lets the account enter candidate discovery.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidInput
	}
	if s.verifications == nil {
		return fmt.Errorf("verification store is not configured")
	}

	userID, err := s.verifications.ConsumeCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return ErrVerificationNotFound
		}
		return fmt.Errorf("consume verification code: %w", err)
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark user verified: %w", err)
	}
	return nil
}

func (s *Service) issueVerification(ctx context.Context, user pgrepo.UserRecord) error {
	if s.verifications == nil {
		return nil
	}

	code, err := NewVerificationCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.verifications.CreateCode(ctx, code, user.ID, verificationTTL); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	s.bridge.VerificationRequested(ctx, notify.VerificationRequestedEvent{
		UserID:      user.ID,
		Email:       user.Email,
		Code:        code,
		RequestedAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidInput
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return AuthResult{}, ErrBadCredentials
		}
		return AuthResult{}, fmt.Errorf("get user by email: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, ErrBadCredentials
	}

	return s.issueForUser(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthResult{}, ErrInvalidInput
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("get refresh token session: %w", err)
	}
	if s.now().After(session.ExpiresAt) {
		return AuthResult{}, ErrUnauthorized
	}

	newRefreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	newExpiresAt := s.now().Add(s.refreshTTL)
	if err := s.sessions.RotateRefresh(ctx, session.SID, refreshToken, newRefreshToken, newExpiresAt); err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(session.UserID, session.SID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	result := AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  newRefreshToken,
		AccessExpires: accessExpires,
		Me:            Me{ID: session.UserID},
	}

	if s.users != nil {
		if user, err := s.users.GetByID(ctx, session.UserID); err == nil {
			result.Me.Email = user.Email
			result.Me.University = user.University
		}
	}

	return result, nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}

	if session.UserID != claims.UserID {
		return AccessClaims{}, ErrUnauthorized
	}
	if s.now().After(session.ExpiresAt) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) issueForUser(ctx context.Context, user pgrepo.UserRecord) (AuthResult, error) {
	sessionID, err := NewSessionID()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate session id: %w", err)
	}
	refreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}

	session := SessionRecord{
		SID:       sessionID,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, session, refreshToken); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(user.ID, sessionID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}

	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:         user.ID,
			Email:      user.Email,
			University: user.University,
		},
	}, nil
}
